package config

// AppConfig holds the top-level application settings.
type AppConfig struct {
	Name string
	Env  string
	Port int
}

func loadAppConfig() AppConfig {
	return AppConfig{
		Name: getEnv("APP_NAME", "auralis"),
		Env:  getEnv("APP_ENV", "development"),
		Port: getEnvInt("PORT", 8080),
	}
}

// IsProduction reports whether the app runs with production settings.
func (c AppConfig) IsProduction() bool {
	return c.Env == "production"
}
