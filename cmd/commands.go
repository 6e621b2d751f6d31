package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Riboost-Studio/label-print-agent/internal/device"
	"github.com/Riboost-Studio/label-print-agent/internal/model"
	"github.com/Riboost-Studio/label-print-agent/internal/services"
	"github.com/Riboost-Studio/label-print-agent/internal/templates"
	"github.com/Riboost-Studio/label-print-agent/internal/utils"
)

func buildDevicesCommand() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List attached USB label printers",
		RunE: func(cmd *cobra.Command, args []string) error {
			bus := device.NewUSBBus(time.Second)
			defer bus.Close()

			found, err := services.DiscoverPrinters(bus, all)
			if err != nil {
				return fmt.Errorf("usb scan failed: %w", err)
			}
			if len(found) == 0 {
				fmt.Println("No label printers found.")
				return nil
			}
			for _, p := range found {
				if p.Known {
					fmt.Printf("%s  %s %s\n", p.ID, p.Family, p.Model)
				} else {
					fmt.Printf("%s  (unknown device)\n", p.ID)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include USB devices that are not known printers")
	return cmd
}

func buildDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the host for everything the agent needs",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := utils.DetectSystem(cmd.Context())
			fmt.Printf("Detected OS: %s (%s)\n", info.OS, info.Architecture)

			if info.ChromePresent {
				fmt.Printf("Chrome: %s %s\n", info.ChromePath, info.ChromeVersion)
			} else {
				fmt.Println("Chrome: not found, summaries cannot be printed as PDF")
				fmt.Println(utils.ChromeInstallHint(info.OS))
			}

			bins := make([]string, 0, len(info.PrintCommands))
			for bin := range info.PrintCommands {
				bins = append(bins, bin)
			}
			sort.Strings(bins)
			for _, bin := range bins {
				path := info.PrintCommands[bin]
				if path == "" {
					path = "missing"
				}
				fmt.Printf("Print command %s: %s\n", bin, path)
			}

			cfg, err := utils.LoadConfig(configFile)
			if err != nil {
				fmt.Printf("Config %s: %v\n", configFile, err)
				return nil
			}
			fmt.Printf("Config %s: ok\n", configFile)
			fmt.Printf("USB target: %s:%s (auto-detect %t)\n",
				utils.FormatUSBID(cfg.Device.VendorID), utils.FormatUSBID(cfg.Device.ProductID), cfg.Device.AutoDetect)
			return nil
		},
	}
}

func buildRenderCommand() *cobra.Command {
	var (
		name    string
		payload string
		html    bool
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a template from a JSON payload file to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			data := model.Payload{}
			if payload != "" {
				raw, err := os.ReadFile(payload)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(raw, &data); err != nil {
					return fmt.Errorf("invalid payload %s: %w", payload, err)
				}
			}

			registry := templates.NewRegistry()
			artifact, err := registry.Render(name, data, time.Now())
			if errors.Is(err, templates.ErrUnknownTemplate) {
				return fmt.Errorf("%w (available: %s)", err, strings.Join(registry.Names(), ", "))
			}
			if err != nil {
				return err
			}
			out := []byte(artifact.Commands)
			if artifact.Kind == model.ArtifactDocument {
				if html {
					if out, err = templates.DocumentHTML(artifact.Document); err != nil {
						return err
					}
				} else {
					out = templates.DocumentText(artifact.Document)
				}
			}
			_, err = os.Stdout.Write(out)
			return err
		},
	}
	cmd.Flags().StringVarP(&name, "template", "t", "label", "template name")
	cmd.Flags().StringVarP(&payload, "payload", "p", "", "JSON payload file")
	cmd.Flags().BoolVar(&html, "html", false, "print summaries as HTML instead of text")
	return cmd
}
