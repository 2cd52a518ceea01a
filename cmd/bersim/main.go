// bersim estimates the bit-error rate of QPSK and 16-QAM over an AWGN
// channel by Monte Carlo sampling.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/jeongseonghan/qam-bersim/internal/modem"
	"github.com/jeongseonghan/qam-bersim/internal/server"
	"github.com/jeongseonghan/qam-bersim/internal/sim"
)

var (
	modulation string
	ebNoDb     float64
	maxErrors  uint64
	maxBits    uint64
	seed       uint64

	sweepStart float64
	sweepStop  float64
	sweepStep  float64

	serveAddr string
	staticDir string
)

var rootCmd = &cobra.Command{
	Use:   "bersim",
	Short: "Monte Carlo BER simulator for QAM over AWGN",
	Long: `bersim estimates the bit-error rate of Gray-coded QPSK and 16-QAM
transmitted over an additive white Gaussian noise channel.

Each estimate simulates blocks of 10000 random symbols until either the
error limit or the bit limit is reached. Ctrl-C cancels a running
simulation at the next block boundary.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Estimate BER at a single Eb/N0 point",
	RunE: func(cmd *cobra.Command, args []string) error {
		mod, err := modem.ParseModulation(modulation)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		runner := sim.Runner{Mod: mod}
		res, err := runner.Run(ctx, sim.Params{
			EbNoDb:    ebNoDb,
			MaxErrors: maxErrors,
			MaxBits:   maxBits,
			Seed:      seed,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s  Eb/N0 = %g dB  (stopped by %s)\n", mod, res.EbNoDb, res.Reason)
		if res.Bits == 0 {
			fmt.Println("ber: undefined (0 bits simulated)")
			return nil
		}
		fmt.Printf("bits: %d  errors: %d\n", res.Bits, res.BitErrors)
		fmt.Printf("ber: %.6g  (95%% CI %.6g .. %.6g)\n", res.BER, res.CILow, res.CIHigh)
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Estimate BER over a range of Eb/N0 points",
	RunE: func(cmd *cobra.Command, args []string) error {
		mod, err := modem.ParseModulation(modulation)
		if err != nil {
			return err
		}

		points, err := sim.SweepPoints(sweepStart, sweepStop, sweepStep)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		runner := sim.Runner{Mod: mod}
		results, err := runner.Sweep(ctx, points, sim.Params{
			MaxErrors: maxErrors,
			MaxBits:   maxBits,
			Seed:      seed,
		})
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Eb/N0 (dB)", "Bits", "Errors", "BER", "95% CI", "Stop"})
		for _, res := range results {
			ber := "undefined"
			ci := "-"
			if res.Bits > 0 {
				ber = fmt.Sprintf("%.6g", res.BER)
				ci = fmt.Sprintf("%.3g .. %.3g", res.CILow, res.CIHigh)
			}
			table.Append([]string{
				fmt.Sprintf("%g", res.EbNoDb),
				strconv.FormatUint(res.Bits, 10),
				strconv.FormatUint(res.BitErrors, 10),
				ber,
				ci,
				res.Reason.String(),
			})
		}
		table.Render()
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the interactive web harness",
	RunE: func(cmd *cobra.Command, args []string) error {
		handlers := server.NewHandlers()
		srv := server.NewServer(serveAddr, handlers, staticDir)
		return srv.Start()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&modulation, "mod", "m", "qpsk", "modulation (qpsk, 16qam)")
	rootCmd.PersistentFlags().Uint64Var(&maxErrors, "max-errors", 100, "stop after this many bit errors")
	rootCmd.PersistentFlags().Uint64Var(&maxBits, "max-bits", 1e7, "stop after this many bits")
	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", 0, "random seed (0 = time-based)")

	runCmd.Flags().Float64Var(&ebNoDb, "ebno", 10, "Eb/N0 in dB")

	sweepCmd.Flags().Float64Var(&sweepStart, "start", 0, "first Eb/N0 point in dB")
	sweepCmd.Flags().Float64Var(&sweepStop, "stop", 10, "last Eb/N0 point in dB")
	sweepCmd.Flags().Float64Var(&sweepStep, "step", 1, "Eb/N0 step in dB")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "0.0.0.0:8080", "server address")
	serveCmd.Flags().StringVar(&staticDir, "static-dir", "./web/static", "static files directory")

	rootCmd.AddCommand(runCmd, sweepCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
