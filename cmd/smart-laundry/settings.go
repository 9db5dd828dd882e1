package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/awaistahir/smart-laundry/internal/engine"
)

func settingsCmd() *cobra.Command {
	var edit engine.ApplianceEdit
	var dryerMode string
	var solar string

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change appliance settings",
		Long: `Without flags, prints the saved settings. Energy flags are applied together:
if any of them is not a positive number, nothing is changed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			_, settings, err := restore(st)
			if err != nil {
				return err
			}

			changed := false
			if !edit.Empty() {
				next, err := engine.ApplyEdit(settings.Appliance, edit)
				if err != nil {
					return err
				}
				settings.Appliance = next
				changed = true
			}
			if dryerMode != "" {
				mode := engine.DryerMode(dryerMode)
				if !mode.Valid() {
					return fmt.Errorf("%w: unknown dryer mode %q (electric or gas)", engine.ErrInvalidConfiguration, dryerMode)
				}
				settings.Appliance.DryerMode = mode
				changed = true
			}
			switch solar {
			case "":
			case "on":
				settings.SolarPriority = true
				changed = true
			case "off":
				settings.SolarPriority = false
				changed = true
			default:
				return fmt.Errorf("--solar takes on or off, got %q", solar)
			}

			if changed {
				if err := st.SaveSettings(settings); err != nil {
					return err
				}
				fmt.Println("✓ Settings saved")
			}

			a := settings.Appliance
			fmt.Printf("Location:        %s\n", settings.Location)
			fmt.Printf("Washer:          %.2f kWh\n", a.WasherKWh)
			fmt.Printf("Electric dryer:  %.2f kWh\n", a.ElectricDryerKWh)
			fmt.Printf("Gas dryer:       %.2f kWh\n", a.GasDryerKWh)
			fmt.Printf("Dryer in use:    %s\n", a.DryerMode)
			fmt.Printf("Water per load:  %.0f gal\n", a.WaterGallons)
			fmt.Printf("Solar priority:  %t\n", settings.SolarPriority)

			return nil
		},
	}

	cmd.Flags().StringVar(&edit.WasherKWh, "washer", "", "Washer energy per load in kWh")
	cmd.Flags().StringVar(&edit.ElectricDryerKWh, "electric-dryer", "", "Electric dryer energy per load in kWh")
	cmd.Flags().StringVar(&edit.GasDryerKWh, "gas-dryer", "", "Gas dryer electricity per load in kWh")
	cmd.Flags().StringVar(&dryerMode, "dryer", "", "Dryer in use: electric or gas")
	cmd.Flags().StringVar(&solar, "solar", "", "Solar priority mode: on or off")

	return cmd
}
