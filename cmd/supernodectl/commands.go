package main

import (
	"github.com/spf13/cobra"

	"supernode/config"
)

func (a *app) poolCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "pool", Short: "Create, inspect and distribute pools"}

	var owner, timezone string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a pool owned by --owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.invoke(cmd, "supernode_create", map[string]string{"owner": owner, "timezone": timezone}, false)
		},
	}
	create.Flags().StringVar(&owner, "owner", "", "owner address")
	create.Flags().StringVar(&timezone, "timezone", "UTC", "IANA timezone of the operator")
	_ = create.MarkFlagRequired("owner")

	get := &cobra.Command{
		Use:   "get <pool>",
		Short: "Show a pool snapshot and its state digest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.invoke(cmd, "supernode_getPool", map[string]string{"pool": args[0]}, false)
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List pools in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.invoke(cmd, "supernode_listPools", nil, false)
		},
	}

	actors := &cobra.Command{
		Use:   "actors <pool>",
		Short: "List the pool's actors in registration order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.invoke(cmd, "supernode_getActors", map[string]string{"pool": args[0]}, false)
		},
	}

	var track string
	pending := &cobra.Command{
		Use:   "pending <pool>",
		Short: "Show the reward a distribution would split now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.invoke(cmd, "supernode_pending", map[string]string{"pool": args[0], "track": track}, false)
		},
	}
	distribute := &cobra.Command{
		Use:   "distribute <pool>",
		Short: "Split undistributed rewards across the pool's actors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.invoke(cmd, "supernode_distribute", map[string]string{"pool": args[0], "track": track}, false)
		},
	}
	last := &cobra.Command{
		Use:   "last-distribution <pool>",
		Short: "Show the most recent distribution recorded by the node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.invoke(cmd, "supernode_lastDistribution", map[string]string{"pool": args[0], "track": track}, false)
		},
	}
	for _, c := range []*cobra.Command{pending, distribute, last} {
		c.Flags().StringVar(&track, "track", "native", "track: native or token")
	}

	var caller string
	var poolNative, poolToken, operatorNative, operatorToken string
	fees := &cobra.Command{
		Use:   "fees <pool>",
		Short: "Set fee fractions, e.g. --pool-native 0.05",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]string{"pool": args[0], "caller": caller}
			for key, raw := range map[string]string{
				"poolNative":     poolNative,
				"poolToken":      poolToken,
				"operatorNative": operatorNative,
				"operatorToken":  operatorToken,
			} {
				value, err := config.ParseFraction(raw)
				if err != nil {
					return err
				}
				params[key] = value.String()
			}
			return a.invoke(cmd, "supernode_setFees", params, false)
		},
	}
	fees.Flags().StringVar(&caller, "caller", "", "pool owner address")
	fees.Flags().StringVar(&poolNative, "pool-native", "0", "pool fee on the native track")
	fees.Flags().StringVar(&poolToken, "pool-token", "0", "pool fee on the token track")
	fees.Flags().StringVar(&operatorNative, "operator-native", "0", "operator fee on the native track")
	fees.Flags().StringVar(&operatorToken, "operator-token", "0", "operator fee on the token track")
	_ = fees.MarkFlagRequired("caller")

	distributor := &cobra.Command{
		Use:   "set-distributor <pool> [distributor]",
		Short: "Attach a reward distributor; omit it to detach",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]string{"pool": args[0]}
			if len(args) == 2 {
				params["distributor"] = args[1]
			}
			return a.invoke(cmd, "supernode_setDistributor", params, true)
		},
	}

	avgFee := &cobra.Command{
		Use:   "set-average-node-fee <pool> <fraction>",
		Short: "Record the pool's average minipool node fee",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fee, err := config.ParseFraction(args[1])
			if err != nil {
				return err
			}
			return a.invoke(cmd, "supernode_setAverageNodeFee", map[string]string{"pool": args[0], "fee": fee.String()}, true)
		},
	}

	cmd.AddCommand(create, get, list, actors, pending, distribute, last, fees, distributor, avgFee)
	return cmd
}

func (a *app) depositCmd() *cobra.Command {
	var track, provider, amount string
	cmd := &cobra.Command{
		Use:   "deposit <pool>",
		Short: "Deposit capital from --provider into the pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.invoke(cmd, "supernode_deposit", map[string]string{
				"pool": args[0], "track": track, "provider": provider, "amount": amount,
			}, false)
		},
	}
	cmd.Flags().StringVar(&track, "track", "native", "track: native or token")
	cmd.Flags().StringVar(&provider, "provider", "", "provider address")
	cmd.Flags().StringVar(&amount, "amount", "", "amount in base units")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (a *app) limitCmd() *cobra.Command {
	var caller, track, provider, limit string
	cmd := &cobra.Command{
		Use:   "limit <pool>",
		Short: "Set a provider's capital limit (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.invoke(cmd, "supernode_setLimit", map[string]string{
				"pool": args[0], "caller": caller, "track": track, "provider": provider, "limit": limit,
			}, false)
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "", "pool owner address")
	cmd.Flags().StringVar(&track, "track", "native", "track: native or token")
	cmd.Flags().StringVar(&provider, "provider", "", "provider address")
	cmd.Flags().StringVar(&limit, "limit", "", "limit in base units")
	for _, name := range []string{"caller", "provider", "limit"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (a *app) operatorCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "operator", Short: "Manage minipool operators"}

	var caller string
	var limit uint64
	setLimit := &cobra.Command{
		Use:   "limit <pool> <operator>",
		Short: "Cap the operator's minipools (owner only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.invoke(cmd, "supernode_setOperatorLimit", map[string]interface{}{
				"pool": args[0], "caller": caller, "operator": args[1], "limit": limit,
			}, false)
		},
	}
	setLimit.Flags().StringVar(&caller, "caller", "", "pool owner address")
	setLimit.Flags().Uint64Var(&limit, "limit", 0, "maximum active minipools")
	_ = setLimit.MarkFlagRequired("caller")

	created := &cobra.Command{
		Use:   "minipool-created <pool> <operator>",
		Short: "Signal a new minipool for the operator",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.invoke(cmd, "supernode_minipoolCreated", map[string]string{"pool": args[0], "operator": args[1]}, true)
		},
	}
	destroyed := &cobra.Command{
		Use:   "minipool-destroyed <pool> <operator>",
		Short: "Signal a retired minipool for the operator",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.invoke(cmd, "supernode_minipoolDestroyed", map[string]string{"pool": args[0], "operator": args[1]}, true)
		},
	}
	cmd.AddCommand(setLimit, created, destroyed)
	return cmd
}

func (a *app) claimCmd() *cobra.Command {
	var track, provider string
	cmd := &cobra.Command{
		Use:   "claim <pool>",
		Short: "Pay out the provider's unclaimed rewards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.invoke(cmd, "supernode_claim", map[string]string{"pool": args[0], "track": track, "provider": provider}, false)
		},
	}
	cmd.Flags().StringVar(&track, "track", "native", "track: native or token")
	cmd.Flags().StringVar(&provider, "provider", "", "provider address")
	_ = cmd.MarkFlagRequired("provider")
	return cmd
}

func (a *app) buyoutCmd() *cobra.Command {
	var track, seller, buyer, amount string
	cmd := &cobra.Command{
		Use:   "buyout <pool>",
		Short: "Sell --amount of the seller's share to --buyer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.invoke(cmd, "supernode_buyout", map[string]string{
				"pool": args[0], "track": track, "seller": seller, "buyer": buyer, "amount": amount,
			}, false)
		},
	}
	cmd.Flags().StringVar(&track, "track", "native", "track: native or token")
	cmd.Flags().StringVar(&seller, "seller", "", "seller address")
	cmd.Flags().StringVar(&buyer, "buyer", "", "buyer address")
	cmd.Flags().StringVar(&amount, "amount", "", "share amount in base units")
	for _, name := range []string{"seller", "buyer", "amount"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (a *app) buyoutLimitCmd() *cobra.Command {
	var track, caller, limit string
	cmd := &cobra.Command{
		Use:   "buyout-limit <pool>",
		Short: "Set how much of the caller's unclaimed rewards may fund buyouts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.invoke(cmd, "supernode_setBuyoutLimit", map[string]string{
				"pool": args[0], "track": track, "caller": caller, "limit": limit,
			}, false)
		},
	}
	cmd.Flags().StringVar(&track, "track", "native", "track: native or token")
	cmd.Flags().StringVar(&caller, "caller", "", "provider address")
	cmd.Flags().StringVar(&limit, "limit", "", "limit in base units")
	_ = cmd.MarkFlagRequired("caller")
	_ = cmd.MarkFlagRequired("limit")
	return cmd
}

func (a *app) accountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "account <pool> <address>",
		Short: "Show an account's positions in the pool",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.invoke(cmd, "supernode_getAccount", map[string]string{"pool": args[0], "address": args[1]}, false)
		},
	}
}

func (a *app) eventsCmd() *cobra.Command {
	var pool, eventType string
	var after uint64
	var limit int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Page through the event journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.invoke(cmd, "supernode_events", map[string]interface{}{
				"pool": pool, "type": eventType, "afterSeq": after, "limit": limit,
			}, false)
		},
	}
	cmd.Flags().StringVar(&pool, "pool", "", "only events of this pool")
	cmd.Flags().StringVar(&eventType, "type", "", "only events of this type")
	cmd.Flags().Uint64Var(&after, "after", 0, "return events after this sequence")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size")
	return cmd
}

func (a *app) bankCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "bank", Short: "Inspect and fund wallet balances"}
	balance := &cobra.Command{
		Use:   "balance <asset> <address>",
		Short: "Show a wallet balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.invoke(cmd, "bank_balance", map[string]string{"asset": args[0], "address": args[1]}, false)
		},
	}
	fund := &cobra.Command{
		Use:   "fund <asset> <address> <amount>",
		Short: "Mint into a wallet on development networks",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.invoke(cmd, "bank_fund", map[string]string{"asset": args[0], "address": args[1], "amount": args[2]}, true)
		},
	}
	cmd.AddCommand(balance, fund)
	return cmd
}
