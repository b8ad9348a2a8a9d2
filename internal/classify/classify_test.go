package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/steveyegge/reap/internal/proctable"
)

func rec(name, parent string, args ...string) proctable.Record {
	argv := append([]string{name}, args...)
	return proctable.NewRecord(1234, 1, name, argv, 1, parent)
}

func TestClassify_EndToEndExample(t *testing.T) {
	c := New(DefaultConfig())
	got := c.Classify(rec("chrome", "python",
		"--remote-debugging-port=9222", "--user-data-dir=/tmp/autoXYZ"))

	assert.True(t, got.Automation)
	assert.True(t, got.NameMatched)
	assert.Equal(t, []Indicator{IndicatorRemoteDebugging, IndicatorTempProfile, IndicatorLauncherParent}, got.Indicators)
}

func TestClassify_NegativeExample(t *testing.T) {
	c := New(DefaultConfig())
	got := c.Classify(rec("chrome", "explorer", "--profile-directory=Default"))

	assert.False(t, got.Automation)
	assert.True(t, got.NameMatched)
	assert.Empty(t, got.Indicators)
}

func TestClassify_NonBrowserNeverInspected(t *testing.T) {
	c := New(DefaultConfig())
	names := []string{"python3", "bash", "firefox", "code", "node"}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			// Every indicator would fire if the name matched.
			got := c.Classify(rec(name, "python",
				"--remote-debugging-port=9222", "--enable-automation", "--user-data-dir=/tmp/x"))
			assert.False(t, got.Automation)
			assert.False(t, got.NameMatched)
			assert.NotNil(t, got.Indicators)
			assert.Empty(t, got.Indicators)
		})
	}
}

func TestClassify_NameAloneNeverSufficient(t *testing.T) {
	c := New(DefaultConfig())
	for _, name := range []string{"chrome", "Chromium", "chromium-browser", "Google Chrome", "chrome.exe"} {
		got := c.Classify(rec(name, "gnome-shell", "--profile-directory=Default", "https://example.com"))
		assert.False(t, got.Automation, name)
		assert.True(t, got.NameMatched, name)
	}
}

func TestClassify_EachIndicatorAloneIsPositive(t *testing.T) {
	c := New(DefaultConfig())
	tests := []struct {
		name   string
		record proctable.Record
		want   Indicator
	}{
		{"debug port", rec("chrome", "systemd", "--remote-debugging-port=0"), IndicatorRemoteDebugging},
		{"debug port separate value", rec("chrome", "systemd", "--remote-debugging-port", "9222"), IndicatorRemoteDebugging},
		{"enable-automation", rec("chrome", "systemd", "--enable-automation"), IndicatorAutomationFlag},
		{"remote-debugging-pipe", rec("chrome", "systemd", "--remote-debugging-pipe"), IndicatorAutomationFlag},
		{"blink AutomationControlled", rec("chrome", "systemd", "--disable-blink-features=AutomationControlled"), IndicatorAutomationFlag},
		{"blink list", rec("chrome", "systemd", "--disable-blink-features=Foo,AutomationControlled"), IndicatorAutomationFlag},
		{"tmp profile", rec("chromium", "systemd", "--user-data-dir=/tmp/puppeteer_dev_profile-abc"), IndicatorTempProfile},
		{"tmp profile separate", rec("chromium", "systemd", "--user-data-dir", "/var/tmp/x"), IndicatorTempProfile},
		{"mac temp", rec("Google Chrome", "launchd", "--user-data-dir=/var/folders/xy/T/playwright_chromiumdev_profile-1"), IndicatorTempProfile},
		{"windows temp", rec("chrome.exe", "explorer.exe", `--user-data-dir=c:\windows\TEMP\prof`), IndicatorTempProfile},
		{"python parent", rec("chrome", "python3.11"), IndicatorLauncherParent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.record)
			assert.True(t, got.Automation)
			assert.True(t, got.Has(tt.want), "indicators = %v", got.Indicators)
			assert.Len(t, got.Indicators, 1)
		})
	}
}

func TestClassify_BlinkFeaturesWithoutAutomationControlled(t *testing.T) {
	c := New(DefaultConfig())
	got := c.Classify(rec("chrome", "systemd", "--disable-blink-features=Foo,Bar"))
	assert.False(t, got.Automation)
}

func TestClassify_RepeatedSwitches(t *testing.T) {
	c := New(DefaultConfig())
	tests := []struct {
		name string
		args []string
		want Indicator
	}{
		{"automation controlled in a later blink list",
			[]string{"--disable-blink-features=Foo", "--disable-blink-features=AutomationControlled"},
			IndicatorAutomationFlag},
		{"automation controlled in an earlier blink list",
			[]string{"--disable-blink-features=automationcontrolled,Bar", "--disable-blink-features=Foo"},
			IndicatorAutomationFlag},
		{"last user-data-dir is temp",
			[]string{"--user-data-dir=/home/u/.config/chrome", "--user-data-dir=/tmp/auto"},
			IndicatorTempProfile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(rec("chrome", "systemd", tt.args...))
			assert.True(t, got.Automation)
			assert.Equal(t, []Indicator{tt.want}, got.Indicators)
		})
	}

	// Only the last profile directory counts.
	got := c.Classify(rec("chrome", "systemd", "--user-data-dir=/tmp/auto", "--user-data-dir=/home/u/.config/chrome"))
	assert.False(t, got.Has(IndicatorTempProfile))
}

func TestClassify_PersistentProfileNotTemp(t *testing.T) {
	c := New(DefaultConfig())
	tests := []string{
		"/home/alice/.config/google-chrome",
		"/tmpfoo/profile",
		"relative/tmp/profile",
	}
	for _, dir := range tests {
		got := c.Classify(rec("chrome", "systemd", "--user-data-dir="+dir))
		assert.False(t, got.Has(IndicatorTempProfile), dir)
	}
}

func TestClassify_UnknownParentIsNotLauncher(t *testing.T) {
	c := New(DefaultConfig())
	got := c.Classify(rec("chrome", proctable.UnknownParent))
	assert.False(t, got.Automation)
}

func TestClassify_ConfigurableLaunchers(t *testing.T) {
	c := New(Config{LauncherPatterns: []string{"Node", "deno"}})

	assert.True(t, c.Classify(rec("chrome", "node")).Has(IndicatorLauncherParent))
	assert.True(t, c.Classify(rec("chrome", "deno")).Has(IndicatorLauncherParent))
	assert.False(t, c.Classify(rec("chrome", "python3")).Has(IndicatorLauncherParent))
}

func TestClassify_ConfigurableBrowsers(t *testing.T) {
	c := New(Config{BrowserPatterns: []string{"MSEdge"}})

	assert.True(t, c.Classify(rec("msedge", "python")).Automation)
	assert.False(t, c.Classify(rec("chrome", "python")).NameMatched)
}

func TestClassify_CustomTempRoots(t *testing.T) {
	c := New(Config{TempRoots: []string{"/scratch/"}})

	assert.True(t, c.Classify(rec("chrome", "systemd", "--user-data-dir=/scratch/run1")).Has(IndicatorTempProfile))
	assert.False(t, c.Classify(rec("chrome", "systemd", "--user-data-dir=/tmp/run1")).Has(IndicatorTempProfile))
}

func TestClassifyAll_PreservesOrder(t *testing.T) {
	c := New(DefaultConfig())
	records := []proctable.Record{
		rec("bash", "sshd"),
		rec("chrome", "python", "--remote-debugging-port=9222"),
		rec("chrome", "explorer"),
	}

	all := c.ClassifyAll(records)
	assert.Len(t, all, 3)
	assert.Equal(t, "bash", all[0].Record.Name)

	positives := Automation(all)
	assert.Len(t, positives, 1)
	assert.Equal(t, []string{"remote-debugging-port", "python-parent"}, positives[0].Result.IndicatorNames())
}

func TestParseFlags(t *testing.T) {
	set := parseFlags([]string{"chrome", "--A=1", "--a=2", "--headless", "https://x", "--user-data-dir", "/p", "-x", "url"})

	assert.Equal(t, "2", set.value("a"), "last occurrence wins, names lowercased")
	assert.Equal(t, []string{"1", "2"}, set.values("a"))
	assert.True(t, set.has("headless"))
	assert.Equal(t, "/p", set.value("user-data-dir"))
	assert.True(t, set.has("x"))
	assert.False(t, set.has("chrome"))
}

func TestWithin(t *testing.T) {
	assert.True(t, within("/tmp", "/tmp"))
	assert.True(t, within("/tmp/a/b", "/tmp"))
	assert.False(t, within("/tmpx", "/tmp"))
	assert.True(t, within("c:/windows/temp/x", normalizePath(`C:\Windows\Temp`)))
}
