package typeenc

import "fmt"

// Split breaks a method signature such as "c40@0:8o^@16@24o^@32" or
// "i@:ii" into per-value encodings (return type first, then receiver,
// selector and declared arguments). Frame offsets are discarded.
func Split(sig string) ([]string, error) {
	var out []string
	i := 0
	for i < len(sig) {
		start := i
		for i < len(sig) && isQualifier(sig[i]) {
			i++
		}
		end, err := skipType(sig, i)
		if err != nil {
			return nil, err
		}
		out = append(out, sig[start:end])
		i = end
		for i < len(sig) && (sig[i] == '-' || isDigit(sig[i])) {
			i++
		}
	}
	return out, nil
}

func isQualifier(c byte) bool {
	switch c {
	case 'r', 'n', 'N', 'o', 'O', 'R', 'V':
		return true
	}
	return false
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// skipType returns the index just past the single type starting at i.
func skipType(sig string, i int) (int, error) {
	if i >= len(sig) {
		return 0, fmt.Errorf("signature %q: missing type at %d", sig, i)
	}
	switch c := sig[i]; c {
	case '^':
		return skipType(sig, i+1)
	case '@':
		i++
		if i < len(sig) && sig[i] == '?' {
			return i + 1, nil
		}
		if i < len(sig) && sig[i] == '"' {
			j := i + 1
			for j < len(sig) && sig[j] != '"' {
				j++
			}
			if j >= len(sig) {
				return 0, fmt.Errorf("signature %q: unterminated class name", sig)
			}
			return j + 1, nil
		}
		return i, nil
	case '{', '(', '[':
		return skipBalanced(sig, i)
	case 'b':
		i++
		for i < len(sig) && isDigit(sig[i]) {
			i++
		}
		return i, nil
	default:
		return i + 1, nil
	}
}

func skipBalanced(sig string, i int) (int, error) {
	depth := 0
	for j := i; j < len(sig); j++ {
		switch sig[j] {
		case '{', '(', '[':
			depth++
		case '}', ')', ']':
			depth--
			if depth == 0 {
				return j + 1, nil
			}
		}
	}
	return 0, fmt.Errorf("signature %q: unbalanced aggregate at %d", sig, i)
}
