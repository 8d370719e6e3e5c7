package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"supernode/cmd/internal/credentials"
)

const tokenEnv = "SUPERNODE_RPC_TOKEN"

type app struct {
	v     *viper.Viper
	token *credentials.Source
}

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Every persistent flag can also be set
// through a SUPERNODECTL_* environment variable.
func newRootCmd(v *viper.Viper) *cobra.Command {
	a := &app{v: v}
	root := &cobra.Command{
		Use:           "supernodectl",
		Short:         "Operate a supernode pooled-capital ledger over JSON-RPC",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.String("endpoint", "http://127.0.0.1:8545/rpc", "JSON-RPC endpoint")
	flags.String("token", "", "static RPC token for privileged methods (or "+tokenEnv+")")
	flags.Bool("token-prompt", false, "prompt for the RPC token when it is not set")
	flags.String("jwt", "", "gateway JWT sent as the bearer token")
	flags.Duration("timeout", 15*time.Second, "request timeout")
	flags.StringP("output", "o", outputText, "output format: text or json")
	_ = v.BindPFlags(flags)
	v.SetEnvPrefix("SUPERNODECTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root.AddCommand(
		a.poolCmd(),
		a.depositCmd(),
		a.limitCmd(),
		a.operatorCmd(),
		a.claimCmd(),
		a.buyoutCmd(),
		a.buyoutLimitCmd(),
		a.accountCmd(),
		a.eventsCmd(),
		a.bankCmd(),
	)
	return root
}

// invoke calls method and prints the result. Privileged methods resolve the
// RPC token first, prompting if --token-prompt is set.
func (a *app) invoke(cmd *cobra.Command, method string, params interface{}, privileged bool) error {
	token := ""
	if privileged {
		if a.token == nil {
			a.token = credentials.NewSource(a.v.GetString("token"), tokenEnv, a.v.GetBool("token-prompt"))
		}
		resolved, err := a.token.Get()
		if err != nil {
			return err
		}
		if resolved == "" {
			return fmt.Errorf("%s requires an RPC token; pass --token, set %s or use --token-prompt", method, tokenEnv)
		}
		token = resolved
	}
	timeout := a.v.GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	c := newClient(a.v.GetString("endpoint"), token, a.v.GetString("jwt"), timeout)
	var result interface{}
	if err := c.call(ctx, method, params, &result); err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), a.v.GetString("output"), result)
}
