package cli

import (
	"strings"

	"github.com/ppiankov/labkit/internal/advisor"
	"github.com/spf13/cobra"
)

var showWeather bool

// weatherCmd represents the weather command
var weatherCmd = &cobra.Command{
	Use:   "weather [location]",
	Short: "Show current weather for a location",
	Long: `Fetch current conditions from OpenWeatherMap. Only the text before the
first comma is used as the city. Requires OPENWEATHERMAP_API_KEY.

Example:
  labkit weather "London, UK"`,
	RunE: runWeather,
}

// wearCmd represents the wear command
var wearCmd = &cobra.Command{
	Use:   "wear [location]",
	Short: "Get clothing advice from live weather",
	Long: `Ask the model what to wear and whether it is a good day for a picnic.
The model looks the weather up itself through a tool call.

Example:
  labkit wear "Syracuse, NY"
  labkit wear Paris --show-weather`,
	RunE: runWear,
}

func init() {
	rootCmd.AddCommand(weatherCmd)
	rootCmd.AddCommand(wearCmd)

	wearCmd.Flags().BoolVar(&showWeather, "show-weather", false, "also print the raw weather data")
}

func (a *app) location(args []string) string {
	if loc := strings.TrimSpace(strings.Join(args, " ")); loc != "" {
		return loc
	}
	return a.cfg.Weather.DefaultLocation
}

func runWeather(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	wc, err := a.weatherClient()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	report, err := wc.Current(ctx, a.location(args))
	if err != nil {
		a.fail(err)
		return nil
	}
	a.out.Weather(report)
	return nil
}

func runWear(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	client, err := a.llmClient()
	if err != nil {
		return err
	}
	wc, err := a.weatherClient()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	loc := a.location(args)
	adv := advisor.New(client, wc, a.cfg.LLM.ToolModel, a.cfg.Weather.DefaultLocation, a.log)

	a.out.Info("Getting weather data and generating suggestions for %s...", loc)
	advice, err := adv.Suggest(ctx, loc)
	if err != nil {
		a.log.Error("clothing advice for %s failed: %v", loc, err)
		a.out.Error(advisor.FallbackMessage)
		return nil
	}

	a.out.Header("👕 Clothing Suggestions for " + advice.Location)
	a.out.Text(advice.Text)

	if showWeather {
		report := advice.Report
		if report == nil {
			// the cache makes this free when the tool already ran
			if report, err = wc.Current(ctx, loc); err != nil {
				a.fail(err)
				return nil
			}
		}
		a.out.Weather(report)
	}
	return nil
}
