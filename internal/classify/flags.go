package classify

import "strings"

// flagSet maps bare switch names ("remote-debugging-port") to every value
// given for them, in argv order.
type flagSet map[string][]string

// parseFlags parses argv (skipping argv[0]) into a flagSet. Both
// "--name=value" and "--name value" are accepted; a following argument is
// taken as the value only if it does not itself look like a switch.
func parseFlags(args []string) flagSet {
	set := make(flagSet)
	if len(args) < 2 {
		return set
	}
	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		arg := rest[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name, value, hasValue := strings.Cut(arg, "=")
		name = flagName(name)
		if name == "" {
			continue
		}
		if !hasValue && i+1 < len(rest) && !strings.HasPrefix(rest[i+1], "-") {
			value = rest[i+1]
			i++
		}
		set[name] = append(set[name], strings.Trim(value, `"'`))
	}
	return set
}

func (s flagSet) has(name string) bool {
	_, ok := s[name]
	return ok
}

// value returns the last value given for name. Chromium applies the last
// occurrence of a repeated switch.
func (s flagSet) value(name string) string {
	vs := s[name]
	if len(vs) == 0 {
		return ""
	}
	return vs[len(vs)-1]
}

// values returns every value given for name.
func (s flagSet) values(name string) []string {
	return s[name]
}

// flagName strips leading dashes and any "=value" and lowercases the rest.
func flagName(f string) string {
	f, _, _ = strings.Cut(strings.TrimSpace(f), "=")
	return strings.ToLower(strings.TrimLeft(f, "-"))
}
