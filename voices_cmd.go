package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"readanything/tts"
)

var rescanModels bool

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List the voices of every available engine",
	Long:  paragraph(fmt.Sprintf("\nProbe every speech engine and %s. Engines that are not usable on this machine are skipped silently.", keyword("list their voices"))),
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		cfg, err := tts.LoadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		engs, pip := buildEngines(cfg)
		if rescanModels {
			pip.Rescan()
		}
		registry := tts.NewRegistry(engs, tts.RegistryConfig{
			ProbeTimeout:     cfg.Timeouts.Probe,
			DiscoveryTimeout: cfg.Timeouts.Discovery,
		})
		voices := registry.Discover(context.Background())
		if len(voices) == 0 {
			fmt.Println("No voices found. Is a speech engine installed?")
			return nil
		}

		sizes := make(map[string]string)
		for _, m := range pip.Models() {
			sizes[m.ID] = humanize.Bytes(uint64(m.Size))
		}

		rows := [][]string{{"ENGINE", "VOICE", "NAME", "LOCALE", "", ""}}
		for _, v := range voices {
			mode := "online"
			if v.Offline {
				mode = "offline"
			}
			rows = append(rows, []string{string(v.Engine), v.ID, v.Name, v.Locale, mode, sizes[v.ID]})
		}
		printTable(rows)
		return nil
	},
}

func init() {
	voicesCmd.Flags().BoolVar(&rescanModels, "rescan", false, "rescan piper model directories")
}

func printTable(rows [][]string) {
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for _, row := range rows {
		line := ""
		for i, cell := range row {
			line += runewidth.FillRight(cell, widths[i]+2)
		}
		fmt.Println(line)
	}
}
