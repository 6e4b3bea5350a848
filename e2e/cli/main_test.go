//go:build e2e

package cli

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
)

func TestScript(t *testing.T) {
	bundlegen := cmp.Or(os.Getenv("BUNDLEGEN"), "bundlegen")

	testscript.Run(t, testscript.Params{
		Dir: ".",
		Setup: func(e *testscript.Env) error {
			e.Vars = append(e.Vars, "BUNDLEGEN="+bundlegen)
			for _, kv := range os.Environ() {
				if strings.HasPrefix(kv, "E2E_") {
					e.Vars = append(e.Vars, kv)
				}
			}
			return nil
		},
		Condition: func(cond string) (bool, error) {
			args := strings.Split(cond, ":")
			name := args[0]
			switch name {
			case "env":
				if len(args) < 2 {
					return false, fmt.Errorf("syntax: [env:SOME_VAR]")
				}
				return os.Getenv(args[1]) != "", nil
			default:
				return false, fmt.Errorf("unknown condition %s", name)
			}
		},
		Cmds: map[string]func(*testscript.TestScript, bool, []string){
			"jsonfield": jsonFieldCmd,
		},
		// To update expectations in txtar files, re-run with E2E_UPDATE=y:
		//   E2E_UPDATE=y go test -tags e2e ./e2e/cli -run TestScript/build_demo -v -count=1
		UpdateScripts: os.Getenv("E2E_UPDATE") != "",
	})
}

// jsonFieldCmd checks a dotted field of a JSON file:
//
//	jsonfield file.json output.filename '[name]-1.0.0.js'
func jsonFieldCmd(ts *testscript.TestScript, neg bool, args []string) {
	if len(args) != 3 {
		ts.Fatalf("usage: jsonfield file path value")
	}

	var doc any
	if err := json.Unmarshal([]byte(ts.ReadFile(args[0])), &doc); err != nil {
		ts.Fatalf("%s: %v", args[0], err)
	}

	v := doc
	for _, key := range strings.Split(args[1], ".") {
		m, ok := v.(map[string]any)
		if !ok {
			ts.Fatalf("%s: %s is not an object", args[0], key)
		}
		v = m[key]
	}

	got := fmt.Sprint(v)
	if (got == args[2]) == neg {
		ts.Fatalf("%s: %s = %q, want %q (negated: %v)", args[0], args[1], got, args[2], neg)
	}
}
