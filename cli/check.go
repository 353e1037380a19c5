package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/absmach/rotor"
)

const maxSensibleThreshold = 10

var errChecksFailed = errors.New("configuration check failed")

// checkResult accumulates findings across one or more config files so the
// command can report everything at once instead of failing on the first
// problem.
type checkResult struct {
	errs  []string
	warns []string
}

func (r *checkResult) errorf(path, format string, args ...any) {
	r.errs = append(r.errs, path+": "+fmt.Sprintf(format, args...))
}

func (r *checkResult) warnf(path, format string, args ...any) {
	r.warns = append(r.warns, path+": "+fmt.Sprintf(format, args...))
}

func checkFile(path string, res *checkResult) *rotor.Config {
	cfg, err := rotor.LoadConfig(path)
	if err != nil {
		res.errorf(path, "%s", err.Error())

		return nil
	}

	if err := cfg.Store.Validate(); err != nil {
		res.errorf(path, "store: %s", err.Error())
	}
	if cfg.Store.Address == "localhost" || cfg.Store.Address == "127.0.0.1" {
		res.warnf(path, "store address is %s, all processes must run on the same host", cfg.Store.Address)
	}

	if cfg.Node.Name != "" || cfg.Node.Port != "" {
		if err := cfg.Node.Validate(); err != nil {
			res.errorf(path, "node: %s", err.Error())
		}
		if cfg.Node.Threshold > maxSensibleThreshold {
			res.warnf(path, "registration_threshold %d is unusually high, rounds may never start", cfg.Node.Threshold)
		}
		if cfg.Node.EnableRotation && !cfg.Node.SemiDecentralized {
			res.errorf(path, "enable_rotation requires semi_decentralized mode")
		}
		if cfg.Node.StoreAddress != "" && cfg.Node.StoreAddress != cfg.Store.Address {
			res.errorf(path, "node store_address %q does not match store address %q", cfg.Node.StoreAddress, cfg.Store.Address)
		}
	}

	if cfg.Window.Port != "" {
		if err := cfg.Window.Validate(); err != nil {
			res.errorf(path, "window: %s", err.Error())
		}
	}

	return cfg
}

// checkCrossFile verifies that every file points at the same coordination
// store. Agents with diverging store addresses silently form disjoint
// clusters.
func checkCrossFile(paths []string, cfgs []*rotor.Config, res *checkResult) {
	var refPath, refAddr string
	for i, cfg := range cfgs {
		if cfg == nil || cfg.Store.Address == "" {
			continue
		}
		if refAddr == "" {
			refPath, refAddr = paths[i], cfg.Store.Address

			continue
		}
		if cfg.Store.Address != refAddr {
			res.errorf(paths[i], "store address %q differs from %q in %s", cfg.Store.Address, refAddr, refPath)
		}
	}
}

func NewCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <config.toml> [config.toml...]",
		Short: "Check configuration files",
		Long:  `Validate one or more rotor configuration files and verify they agree on the shared coordination store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				logUsageCmd(*cmd, cmd.Use)

				return nil
			}

			res := &checkResult{}
			cfgs := make([]*rotor.Config, 0, len(args))
			for _, path := range args {
				cfgs = append(cfgs, checkFile(path, res))
			}
			checkCrossFile(args, cfgs, res)

			for _, w := range res.warns {
				logWarnCmd(*cmd, w)
			}
			for _, e := range res.errs {
				logErrorCmd(*cmd, errors.New(e))
			}

			if len(res.errs) > 0 {
				return fmt.Errorf("%w: %d error(s), %d warning(s)", errChecksFailed, len(res.errs), len(res.warns))
			}

			logSuccessCmd(*cmd, fmt.Sprintf("All %d file(s) passed with %d warning(s)", len(args), len(res.warns)))

			return nil
		},
	}
}
