package tools

import (
	"os"
	"strings"
)

// secretSuffixes mark environment variables that are not passed to
// child processes.
var secretSuffixes = []string{"_API_KEY", "_SECRET", "_TOKEN", "_PASSWORD", "_CREDENTIAL"}

// alwaysPassed overrides secretSuffixes.
var alwaysPassed = map[string]bool{
	"PATH": true, "HOME": true, "USER": true, "SHELL": true, "LANG": true, "TERM": true, "TMPDIR": true,
	"GOPATH": true, "GOROOT": true, "CARGO_HOME": true, "RUSTUP_HOME": true, "NVM_DIR": true, "PYENV_ROOT": true,
	"XDG_CONFIG_HOME": true, "XDG_DATA_HOME": true, "XDG_CACHE_HOME": true,
}

func keepEnv(name string) bool {
	if alwaysPassed[name] {
		return true
	}
	upper := strings.ToUpper(name)
	for _, suffix := range secretSuffixes {
		if strings.HasSuffix(upper, suffix) {
			return false
		}
	}
	return true
}

// SafeEnviron is the process environment minus credentials, plus extra.
// Commands the model runs and stdio MCP servers start with it.
func SafeEnviron(extra map[string]string) []string {
	env := make([]string, 0, len(extra))
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && keepEnv(name) {
			env = append(env, kv)
		}
	}
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}
