package cli_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gofalre.io/fuelstock/cli"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCmdForTest()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	cmd := cli.NewRootCmdForTest()

	names := make([]string, 0)
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}

	for _, want := range []string{"serve", "seed", "levels", "alerts", "movements", "sell", "purchase", "reorder", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "fuelstock dev")
}

func TestMutatingCmds_RejectNonNumericLitres(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"sell", []string{"sell", "PMS", "ten"}, "litres must be numeric"},
		{"purchase", []string{"purchase", "PMS", "abc"}, "litres must be numeric"},
		{"purchase default reorder", []string{"purchase", "PMS", "100", "--default-reorder", "x"}, "default reorder level must be numeric"},
		{"reorder", []string{"reorder", "PMS", "lots"}, "reorder level must be numeric"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCmd(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMutatingCmds_RequireArgs(t *testing.T) {
	_, err := runCmd(t, "sell", "PMS")
	require.Error(t, err)

	_, err = runCmd(t, "movements")
	require.Error(t, err)
}
