// Package classify decides whether a process is a browser started by an
// automation framework.
//
// A process is automation only when its name matches a browser pattern AND
// at least one strong indicator is present. A browser name alone never
// qualifies.
//
// Known false positive: a user browser launched with --remote-debugging-port
// for DevTools work is classified as automation. Operators are told about
// this; there is no exception list.
package classify

import (
	"os"
	"path"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/go-rod/rod/lib/launcher/flags"

	"github.com/steveyegge/reap/internal/proctable"
)

// Indicator names one signal of programmatic browser control.
type Indicator string

// Indicators, in evaluation order.
const (
	// IndicatorRemoteDebugging: a CDP endpoint was requested.
	IndicatorRemoteDebugging Indicator = "remote-debugging-port"
	// IndicatorAutomationFlag: an automation-only switch is present.
	IndicatorAutomationFlag Indicator = "automation-controlled-flag"
	// IndicatorTempProfile: the profile lives in a temporary directory.
	IndicatorTempProfile Indicator = "temp-profile-dir"
	// IndicatorLauncherParent: the parent is a scripting runtime. Fired by
	// any configured launcher pattern, not only python.
	IndicatorLauncherParent Indicator = "python-parent"
)

// blinkFeaturesFlag disables Blink features; AutomationControlled in its
// list hides navigator.webdriver, which only automation wants.
const blinkFeaturesFlag = "disable-blink-features"

const automationControlled = "automationcontrolled"

// Default pattern sets.
var (
	DefaultBrowserPatterns  = []string{"chrome", "chromium"}
	DefaultLauncherPatterns = []string{"python"}
	DefaultAutomationFlags  = []string{"--enable-automation", "--remote-debugging-pipe"}
)

// DefaultTempRoots returns the temporary-file areas a throwaway profile is
// created under on the common platforms.
func DefaultTempRoots() []string {
	roots := []string{
		"/tmp",
		"/var/tmp",
		"/dev/shm",
		"/private/tmp",
		"/var/folders",
		"/private/var/folders",
		`C:\Windows\Temp`,
	}
	if tmp := os.TempDir(); tmp != "" {
		roots = append([]string{tmp}, roots...)
	}
	return roots
}

// Config holds the classifier's tunables. Empty slices mean "use defaults".
type Config struct {
	BrowserPatterns  []string
	LauncherPatterns []string
	AutomationFlags  []string
	TempRoots        []string
}

// DefaultConfig returns the stock classifier configuration.
func DefaultConfig() Config {
	return Config{
		BrowserPatterns:  DefaultBrowserPatterns,
		LauncherPatterns: DefaultLauncherPatterns,
		AutomationFlags:  DefaultAutomationFlags,
		TempRoots:        DefaultTempRoots(),
	}
}

// Result is the classification of one record.
type Result struct {
	Automation  bool        `json:"automation"`
	NameMatched bool        `json:"name_matched"`
	Indicators  []Indicator `json:"indicators"`
}

// Has reports whether ind matched.
func (r Result) Has(ind Indicator) bool {
	for _, got := range r.Indicators {
		if got == ind {
			return true
		}
	}
	return false
}

// IndicatorNames returns the matched indicators as strings.
func (r Result) IndicatorNames() []string {
	names := make([]string, len(r.Indicators))
	for i, ind := range r.Indicators {
		names[i] = string(ind)
	}
	return names
}

// Classified pairs a record with its classification.
type Classified struct {
	Record proctable.Record `json:"process"`
	Result Result           `json:"classification"`
}

// Classifier applies the heuristic. It is safe for concurrent use.
type Classifier struct {
	browsers        []string
	launchers       []string
	automationFlags mapset.Set[string]
	tempRoots       []string
}

// New builds a Classifier. Patterns are lowercased; flags are normalized to
// bare names without leading dashes.
func New(cfg Config) *Classifier {
	def := DefaultConfig()
	if len(cfg.BrowserPatterns) == 0 {
		cfg.BrowserPatterns = def.BrowserPatterns
	}
	if len(cfg.LauncherPatterns) == 0 {
		cfg.LauncherPatterns = def.LauncherPatterns
	}
	if len(cfg.AutomationFlags) == 0 {
		cfg.AutomationFlags = def.AutomationFlags
	}
	if len(cfg.TempRoots) == 0 {
		cfg.TempRoots = def.TempRoots
	}

	c := &Classifier{
		browsers:        lowerAll(cfg.BrowserPatterns),
		launchers:       lowerAll(cfg.LauncherPatterns),
		automationFlags: mapset.NewThreadUnsafeSet[string](),
	}
	for _, f := range cfg.AutomationFlags {
		if name := flagName(f); name != "" {
			c.automationFlags.Add(name)
		}
	}
	for _, root := range cfg.TempRoots {
		if root = strings.TrimSpace(root); root != "" {
			c.tempRoots = append(c.tempRoots, normalizePath(root))
		}
	}
	return c
}

// Classify evaluates one record. Pure: it reads only rec.
func (c *Classifier) Classify(rec proctable.Record) Result {
	if !c.matchesBrowser(rec.Name) {
		return Result{Indicators: []Indicator{}}
	}

	args := parseFlags(rec.Args)
	indicators := make([]Indicator, 0, 4)

	if args.has(string(flags.RemoteDebuggingPort)) {
		indicators = append(indicators, IndicatorRemoteDebugging)
	}
	if c.hasAutomationFlag(args) {
		indicators = append(indicators, IndicatorAutomationFlag)
	}
	if c.inTempRoot(profileDir(rec, args)) {
		indicators = append(indicators, IndicatorTempProfile)
	}
	if c.matchesLauncher(rec.ParentName) {
		indicators = append(indicators, IndicatorLauncherParent)
	}

	return Result{
		Automation:  len(indicators) > 0,
		NameMatched: true,
		Indicators:  indicators,
	}
}

// ClassifyAll classifies every record, preserving order.
func (c *Classifier) ClassifyAll(records []proctable.Record) []Classified {
	out := make([]Classified, len(records))
	for i, rec := range records {
		out[i] = Classified{Record: rec, Result: c.Classify(rec)}
	}
	return out
}

// Automation filters classified records to positive verdicts.
func Automation(all []Classified) []Classified {
	var out []Classified
	for _, c := range all {
		if c.Result.Automation {
			out = append(out, c)
		}
	}
	return out
}

func (c *Classifier) matchesBrowser(name string) bool {
	return containsAny(strings.ToLower(name), c.browsers)
}

func (c *Classifier) matchesLauncher(parent string) bool {
	if parent == "" || parent == proctable.UnknownParent {
		return false
	}
	return containsAny(strings.ToLower(parent), c.launchers)
}

func (c *Classifier) hasAutomationFlag(args flagSet) bool {
	for name := range args {
		if c.automationFlags.Contains(name) {
			return true
		}
	}
	for _, v := range args.values(blinkFeaturesFlag) {
		for _, feature := range strings.Split(v, ",") {
			if strings.ToLower(strings.TrimSpace(feature)) == automationControlled {
				return true
			}
		}
	}
	return false
}

func (c *Classifier) inTempRoot(dir string) bool {
	if dir == "" {
		return false
	}
	dir = normalizePath(dir)
	for _, root := range c.tempRoots {
		if within(dir, root) {
			return true
		}
	}
	return false
}

// profileDir prefers the enumerator's extraction and falls back to the
// parsed flags.
func profileDir(rec proctable.Record, args flagSet) string {
	if rec.UserDataDir != "" {
		return rec.UserDataDir
	}
	return args.value(string(flags.UserDataDir))
}

// normalizePath cleans a path and folds case for Windows drive paths,
// which are case-insensitive.
func normalizePath(p string) string {
	p = strings.Trim(p, `"'`)
	if isWindowsPath(p) {
		return strings.ToLower(path.Clean(strings.ReplaceAll(p, `\`, "/")))
	}
	return path.Clean(p)
}

func isWindowsPath(p string) bool {
	return len(p) >= 2 && p[1] == ':' && ((p[0] >= 'a' && p[0] <= 'z') || (p[0] >= 'A' && p[0] <= 'Z'))
}

// within reports whether dir is root or below it, on a path boundary so
// /tmpfoo is not inside /tmp.
func within(dir, root string) bool {
	if dir == root {
		return true
	}
	prefix := strings.TrimSuffix(root, "/")
	return strings.HasPrefix(dir, prefix+"/")
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
