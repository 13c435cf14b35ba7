package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/idspan/pkg/itvl"
)

// Operation names recorded in logs, spans and metrics.
const (
	opReserve = "reserve"
	opRelease = "release"
	opNext    = "next"
	opCheck   = "check"
)

const rangeSeparator = "-"

var (
	// ErrInvalidRange is returned for an argument that is neither "N" nor "A-B".
	ErrInvalidRange = errors.New("invalid identifier range")
	// ErrExhausted is returned when no identifier is left to reserve.
	ErrExhausted = errors.New("no identifier available")
	// ErrInvalidCount is returned for a non-positive --count.
	ErrInvalidCount = errors.New("count must be positive")
)

// parseRange parses "N" or "A-B". The bounds may come in either order.
func parseRange(arg string) (itvl.Interval, error) {
	lo, hi, isRange := strings.Cut(arg, rangeSeparator)

	start, err := parseID(lo)
	if err != nil {
		return itvl.Interval{}, fmt.Errorf("%w %q: %w", ErrInvalidRange, arg, err)
	}

	if !isRange {
		return itvl.Interval{Start: start, End: start}, nil
	}

	end, err := parseID(hi)
	if err != nil {
		return itvl.Interval{}, fmt.Errorf("%w %q: %w", ErrInvalidRange, arg, err)
	}

	return itvl.Interval{Start: min(start, end), End: max(start, end)}, nil
}

func parseID(s string) (itvl.ID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, err
	}

	return itvl.ID(n), nil
}

func parseRanges(args []string) ([]itvl.Interval, error) {
	ranges := make([]itvl.Interval, 0, len(args))

	for _, arg := range args {
		iv, err := parseRange(arg)
		if err != nil {
			return nil, err
		}

		ranges = append(ranges, iv)
	}

	return ranges, nil
}

func newReserveCommand(opts *globalOptions) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "reserve [ID|A-B ...]",
		Short: "Mark identifiers as used",
		Long: `Mark identifiers as used.

Without arguments the smallest available identifiers are reserved and printed,
one per line. With arguments every given identifier or range is reserved; either
all of them succeed or the state is left as it was.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ranges, err := parseRanges(args)
			if err != nil {
				return err
			}

			if len(ranges) == 0 && count <= 0 {
				return fmt.Errorf("%w: %d", ErrInvalidCount, count)
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if len(ranges) == 0 {
					return reserveNext(ctx, a, count)
				}

				return a.store.Update(ctx, opReserve, func(mgr *itvl.Manager) error {
					for _, iv := range ranges {
						eraseErr := mgr.EraseRange(iv.Start, iv.End)
						if eraseErr != nil {
							return fmt.Errorf("reserve %v: %w", iv, eraseErr)
						}
					}

					return nil
				})
			})
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of identifiers to reserve when none are given")

	return cmd
}

func reserveNext(ctx context.Context, a *app, count int) error {
	var reserved []itvl.ID

	err := a.store.Update(ctx, opReserve, func(mgr *itvl.Manager) error {
		available := mgr.Stats().Available
		if uint64(count) > available {
			return fmt.Errorf("%w: %d requested, %d available", ErrExhausted, count, available)
		}

		reserved = make([]itvl.ID, 0, count)

		for range count {
			d, ok := mgr.AvailNum()
			if !ok {
				return ErrExhausted
			}

			eraseErr := mgr.Erase(d)
			if eraseErr != nil {
				return eraseErr
			}

			reserved = append(reserved, d)
		}

		return nil
	})
	if err != nil {
		return err
	}

	for _, d := range reserved {
		fmt.Fprintln(a.out, d)
	}

	return nil
}

func newReleaseCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "release ID|A-B ...",
		Short: "Mark identifiers as available again",
		Long: `Mark identifiers as available again. Either every given identifier or range
is released or the state is left as it was.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ranges, err := parseRanges(args)
			if err != nil {
				return err
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return a.store.Update(ctx, opRelease, func(mgr *itvl.Manager) error {
					for _, iv := range ranges {
						addErr := mgr.AddRange(iv.Start, iv.End)
						if addErr != nil {
							return fmt.Errorf("release %v: %w", iv, addErr)
						}
					}

					return nil
				})
			})
		},
	}
}

func newNextCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Print the smallest available identifier without reserving it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return a.store.View(ctx, opNext, func(mgr *itvl.Manager) error {
					d, ok := mgr.AvailNum()
					if !ok {
						return ErrExhausted
					}

					fmt.Fprintln(a.out, d)

					return nil
				})
			})
		},
	}
}

func newCheckCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check ID|A-B ...",
		Short: "Test whether identifiers are available",
		Long: `Test whether every identifier of each given range is available.
One line is printed per argument.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ranges, err := parseRanges(args)
			if err != nil {
				return err
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return a.store.View(ctx, opCheck, func(mgr *itvl.Manager) error {
					for _, iv := range ranges {
						if mgr.Check(iv.Start, iv.End) {
							a.paint.good.Fprintf(a.out, "%v available\n", iv)
						} else {
							a.paint.bad.Fprintf(a.out, "%v in use\n", iv)
						}
					}

					return nil
				})
			})
		},
	}
}
