package builtin

import (
	"context"
	"strings"

	"callbroker/internal/tool"
)

const (
	WeatherToolName        = "weatherInfo"
	WeatherToolDescription = "Find the weather conditions, forecasts, and temperatures for a location, like a city or state."
)

type Unit string

const (
	UnitCelsius    Unit = "C"
	UnitFahrenheit Unit = "F"
)

type WeatherRequest struct {
	Location string `json:"location" jsonschema:"the city or state, e.g. San Francisco, CA"`
}

type WeatherResponse struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	TempMin   float64 `json:"temp_min"`
	TempMax   float64 `json:"temp_max"`
	Pressure  int     `json:"pressure"`
	Humidity  int     `json:"humidity"`
	Unit      Unit    `json:"unit"`
}

// knownTemperatures are canned Celsius readings; any other location reads 10.
var knownTemperatures = []struct {
	city string
	temp float64
}{
	{"Paris", 15},
	{"Tokyo", 10},
	{"San Francisco", 30},
}

// NewWeatherTool returns a deterministic weather service, handy for demos
// and for checking that a model actually calls tools.
func NewWeatherTool() *tool.Func[WeatherRequest, WeatherResponse] {
	return tool.MustFunc(WeatherToolName, WeatherToolDescription, Weather)
}

func Weather(ctx context.Context, req WeatherRequest) (WeatherResponse, error) {
	temp := 10.0
	for _, k := range knownTemperatures {
		if strings.Contains(req.Location, k.city) {
			temp = k.temp
			break
		}
	}

	return WeatherResponse{
		Temp:      temp,
		FeelsLike: 15,
		TempMin:   20,
		TempMax:   2,
		Pressure:  53,
		Humidity:  45,
		Unit:      UnitCelsius,
	}, nil
}
