// Package toolchain builds the environment every Turbomole step runs in:
// the module-load prelude and the exported parallelization variables.
package toolchain

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/programme-lv/tmjob/api"
)

const (
	ParNodesKey = "PARNODES"
	ParaArchKey = "PARA_ARCH"
	SysNameKey  = "TURBOMOLE_SYSNAME"

	DefaultModuleInit = "/etc/profile.d/modules.sh"
)

var reservedKeys = mapset.NewSet(ParNodesKey, ParaArchKey, SysNameKey)

func Default() api.Toolchain {
	return api.Toolchain{
		Module:     "turbomole/7.8",
		ModuleInit: DefaultModuleInit,
		ParNodes:   8,
		ParaArch:   "SMP",
		SysName:    "x86_64-unknown-linux-gnu_smp",
	}
}

// Validate rejects extra variables that would shadow the toolchain keys.
func Validate(tc api.Toolchain) error {
	if tc.ParNodes < 0 {
		return fmt.Errorf("parnodes must not be negative, got %d", tc.ParNodes)
	}
	for key := range tc.ExtraEnv {
		if reservedKeys.Contains(key) {
			return fmt.Errorf("extra_env must not set %s, use the toolchain field", key)
		}
		if key == "" || strings.ContainsAny(key, "= \t\n") {
			return fmt.Errorf("invalid environment variable name %q", key)
		}
	}
	return nil
}

// Environ returns the exported variables in a fixed order so repeated
// invocations see identical environments.
func Environ(tc api.Toolchain) []string {
	env := []string{}
	if tc.ParNodes > 0 {
		env = append(env, ParNodesKey+"="+strconv.Itoa(tc.ParNodes))
	}
	if tc.ParaArch != "" {
		env = append(env, ParaArchKey+"="+tc.ParaArch)
	}
	if tc.SysName != "" {
		env = append(env, SysNameKey+"="+tc.SysName)
	}
	keys := make([]string, 0, len(tc.ExtraEnv))
	for k := range tc.ExtraEnv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+tc.ExtraEnv[k])
	}
	return env
}

// Merge overlays the toolchain variables on base. Keys set by the toolchain
// replace any value inherited from base.
func Merge(base []string, tc api.Toolchain) []string {
	own := Environ(tc)
	owned := mapset.NewSet[string]()
	for _, kv := range own {
		owned.Add(envKey(kv))
	}
	merged := make([]string, 0, len(base)+len(own))
	for _, kv := range base {
		if owned.Contains(envKey(kv)) {
			continue
		}
		merged = append(merged, kv)
	}
	return append(merged, own...)
}

// MergeOS is Merge applied to the current process environment.
func MergeOS(tc api.Toolchain) []string {
	return Merge(os.Environ(), tc)
}

func envKey(kv string) string {
	k, _, _ := strings.Cut(kv, "=")
	return k
}

// Prelude returns the shell text that makes the module available.
func Prelude(tc api.Toolchain) string {
	if tc.Module == "" {
		return ""
	}
	var b strings.Builder
	if tc.ModuleInit != "" {
		path := Quote(tc.ModuleInit)
		fmt.Fprintf(&b, "[ -f %s ] && . %s\n", path, path)
	}
	fmt.Fprintf(&b, "module load %s", Quote(tc.Module))
	return b.String()
}

// Wrap returns the bash command used to run a single program with the
// toolchain loaded. The exports follow the module load, as in the batch
// script, so a modulefile cannot change them.
func Wrap(tc api.Toolchain, program string) string {
	prelude := Prelude(tc)
	if prelude == "" {
		return "exec " + program
	}
	var b strings.Builder
	b.WriteString(prelude + " || exit 127\n")
	for _, line := range Exports(tc) {
		b.WriteString(line + "\n")
	}
	b.WriteString("exec " + program)
	return b.String()
}

// Exports returns "export KEY=VALUE" lines for a batch script.
func Exports(tc api.Toolchain) []string {
	env := Environ(tc)
	lines := make([]string, 0, len(env))
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		lines = append(lines, "export "+k+"="+Quote(v))
	}
	return lines
}

// Quote returns s as a single shell word. Plain words are kept as-is.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	plain := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' ||
			strings.ContainsRune("-_./:=+,@%", r)) {
			plain = false
			break
		}
	}
	if plain {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
