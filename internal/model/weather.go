package model

// WeatherReport is current weather with temperatures in degrees Celsius
type WeatherReport struct {
	Location    string  `json:"location"`
	Temperature float64 `json:"temperature"`
	FeelsLike   float64 `json:"feels_like"`
	TempMin     float64 `json:"temp_min"`
	TempMax     float64 `json:"temp_max"`
	Humidity    float64 `json:"humidity"`
	Description string  `json:"description"`
	MainWeather string  `json:"main_weather"`
	WindSpeed   float64 `json:"wind_speed"` // m/s
}
