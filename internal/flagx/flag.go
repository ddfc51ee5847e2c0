// Package flagx lets several components share one command line. Each
// component picks out only the flags it owns, and vaultctl separates its
// command words from the flags around them.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// ConfigFlags name the JSON config file for both the server and vaultctl.
var ConfigFlags = []string{"-c", "-config"}

func nameSet(names []string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

// splitFlag reports whether arg looks like a flag and, for the -name=value
// form, returns the name part.
func splitFlag(arg string) (name string, inline, isFlag bool) {
	if len(arg) < 2 || arg[0] != '-' {
		return "", false, false
	}
	if i := strings.IndexByte(arg, '='); i > 0 {
		return arg[:i], true, true
	}
	return arg, false, true
}

// FilterArgs keeps the flags listed in allowedFlags together with their
// values and drops everything else. A value is either inline (-c=conf.json)
// or the next argument when that argument does not start with "-".
//
//	FilterArgs([]string{"-c", "conf.json", "-a", ":1"}, []string{"-c"})
//	// []string{"-c", "conf.json"}
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := nameSet(allowedFlags)
	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		name, inline, isFlag := splitFlag(args[i])
		if !isFlag {
			continue
		}
		if _, ok := allowed[name]; !ok {
			continue
		}

		filtered = append(filtered, args[i])
		if !inline && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// ConfigPath returns the JSON config path given with -c or -config, or ""
// when neither is present. The last occurrence wins.
func ConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, ConfigFlags))

	return path
}

// JsonConfigFlags is ConfigPath over os.Args.
func JsonConfigFlags() string {
	return ConfigPath(os.Args[1:])
}

// Positional returns the arguments that are neither flags nor values of the
// given value-taking flags, in order. A bare "--" ends flag processing and
// everything after it is positional.
//
//	Positional([]string{"-a", "host:1", "restore", "x.json"}, []string{"-a"})
//	// []string{"restore", "x.json"}
func Positional(args []string, valueFlags []string) []string {
	takesValue := nameSet(valueFlags)
	out := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			return append(out, args[i+1:]...)
		}

		name, inline, isFlag := splitFlag(args[i])
		if !isFlag {
			out = append(out, args[i])
			continue
		}
		if _, ok := takesValue[name]; ok && !inline && i+1 < len(args) {
			i++
		}
	}
	return out
}
