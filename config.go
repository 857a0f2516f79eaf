package main

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	OrderSiteURL string `yaml:"order_site_url"`
	OrdersCSVURL string `yaml:"orders_csv_url"`

	DownloadPath   string `yaml:"download_path"`
	ReceiptsDir    string `yaml:"receipts_dir"`
	ScreenshotsDir string `yaml:"screenshots_dir"`
	ArchivePath    string `yaml:"archive_path"`

	BrowserProfilePath string `yaml:"browser_profile_path"`

	PageLoadTimeout       int `yaml:"page_load_timeout"`
	ElementTimeoutSeconds int `yaml:"element_timeout_seconds"`
	DownloadTimeout       int `yaml:"download_timeout"`

	// Submit retry policy: the order button is re-clicked while the error
	// alert is shown, up to SubmitMaxAttempts clicks in total.
	SubmitMaxAttempts    int `yaml:"submit_max_attempts"`
	SubmitRetryDelayMs   int `yaml:"submit_retry_delay_ms"`
	SubmitTimeoutSeconds int `yaml:"submit_timeout_seconds"`

	// How long a fresh form is watched for the interstitial modal.
	ModalWaitMs int `yaml:"modal_wait_ms"`

	ViewportWidth  int `yaml:"viewport_width"`
	ViewportHeight int `yaml:"viewport_height"`

	Headless bool `yaml:"headless"`
	Stealth  bool `yaml:"stealth"`

	DebugMode bool   `yaml:"debug_mode"`
	LogFile   string `yaml:"log_file"`

	Selectors SelectorConfig `yaml:"selectors"`
}

type SelectorConfig struct {
	ModalDismissButton string `yaml:"modal_dismiss_button"`
	HeadSelect         string `yaml:"head_select"`
	BodyRadioPrefix    string `yaml:"body_radio_prefix"`
	LegsInput          string `yaml:"legs_input"`
	AddressInput       string `yaml:"address_input"`
	PreviewButton      string `yaml:"preview_button"`
	OrderButton        string `yaml:"order_button"`
	ErrorAlert         string `yaml:"error_alert"`
	Receipt            string `yaml:"receipt"`
	RobotPreviewImage  string `yaml:"robot_preview_image"`
	OrderAnotherButton string `yaml:"order_another_button"`
}

func DefaultConfig() *Config {
	userDataDir := getUserDataDir()

	return &Config{
		OrderSiteURL:          "https://robotsparebinindustries.com/#/robot-order",
		OrdersCSVURL:          "https://robotsparebinindustries.com/orders.csv",
		DownloadPath:          filepath.Join("output", "downloads", "orders.csv"),
		ReceiptsDir:           filepath.Join("output", "receipts"),
		ScreenshotsDir:        filepath.Join("output", "screenshots"),
		ArchivePath:           filepath.Join("output", "robot_order_receipts.zip"),
		BrowserProfilePath:    filepath.Join(userDataDir, "browser-profile"),
		PageLoadTimeout:       30,
		ElementTimeoutSeconds: 10,
		DownloadTimeout:       30,
		SubmitMaxAttempts:     10,
		SubmitRetryDelayMs:    250,
		SubmitTimeoutSeconds:  60,
		ModalWaitMs:           2000,
		ViewportWidth:         1280,
		ViewportHeight:        1024,
		Headless:              false,
		Stealth:               false,
		DebugMode:             false,
		LogFile:               filepath.Join(userDataDir, "logs", "robotorders.log"),
		Selectors: SelectorConfig{
			ModalDismissButton: "button.btn.btn-dark",
			HeadSelect:         "#head",
			BodyRadioPrefix:    "#id-body-",
			LegsInput:          "input[placeholder='Enter the part number for the legs']",
			AddressInput:       "#address",
			PreviewButton:      "#preview",
			OrderButton:        "#order",
			ErrorAlert:         ".alert.alert-danger",
			Receipt:            "#receipt",
			RobotPreviewImage:  "#robot-preview-image",
			OrderAnotherButton: "#order-another",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Save(path); err != nil {
			return nil, err
		}
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	if config.BrowserProfilePath != "" {
		if err := os.MkdirAll(config.BrowserProfilePath, 0755); err != nil {
			return nil, err
		}
	}

	return config, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Paths returns the artifact naming scheme rooted at the configured directories.
func (c *Config) Paths() ArtifactPaths {
	return ArtifactPaths{
		ReceiptsDir:    c.ReceiptsDir,
		ScreenshotsDir: c.ScreenshotsDir,
	}
}

func (c *Config) elementTimeout() time.Duration {
	return secondsToDuration(c.ElementTimeoutSeconds)
}

func (c *Config) formPolicy() FormPolicy {
	return FormPolicy{
		MaxAttempts: c.SubmitMaxAttempts,
		Delay:       time.Duration(c.SubmitRetryDelayMs) * time.Millisecond,
		Timeout:     secondsToDuration(c.SubmitTimeoutSeconds),
		ModalWait:   time.Duration(c.ModalWaitMs) * time.Millisecond,
	}
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

func getUserDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./robotorders-data"
	}
	return filepath.Join(home, ".robotorders")
}
