package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PortalConfig carries display and upload settings for the payment flows.
type PortalConfig struct {
	MerchantName       string   `mapstructure:"merchantName"`
	MerchantCity       string   `mapstructure:"merchantCity"`
	MerchantPostalCode string   `mapstructure:"merchantPostalCode"`
	QRImageURL         string   `mapstructure:"qrImageUrl"`
	QRImagePath        string   `mapstructure:"qrImagePath"`
	QRDownloadURL      string   `mapstructure:"qrDownloadUrl"` // {id} is replaced with the bill id
	MaxProofBytes      int64    `mapstructure:"maxProofBytes"`
	Instructions       []string `mapstructure:"instructions"`
}

func DefaultPortalConfig() PortalConfig {
	return PortalConfig{
		MerchantName:       "SEKAR NET",
		MerchantCity:       "Jakarta",
		MerchantPostalCode: "12345",
		QRImageURL:         "/assets/qris-sekar-net.png",
		QRImagePath:        "assets/qris-sekar-net.png",
		QRDownloadURL:      "/api/v1/bills/{id}/qris/download",
		MaxProofBytes:      2 << 20,
		Instructions: []string{
			"1. Buka aplikasi e-wallet atau mobile banking Anda",
			"2. Pilih fitur Scan QRIS",
			"3. Scan kode QR di atas",
			"4. Masukkan nominal pembayaran sesuai tagihan",
			"5. Periksa detail pembayaran",
			"6. Konfirmasi pembayaran",
			"7. Simpan bukti pembayaran",
			"8. Upload bukti pembayaran di halaman billing",
		},
	}
}

type PortalConfigHolder struct {
	current atomic.Value // holds PortalConfig
}

// NewStaticPortalConfigHolder wraps a fixed config, mainly for tests.
func NewStaticPortalConfigHolder(cfg PortalConfig) *PortalConfigHolder {
	holder := &PortalConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewPortalConfigHolder(log *zap.Logger) (*PortalConfigHolder, error) {
	log = log.Named("portal_config")
	v := viper.New()

	v.SetConfigName("portal")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/sekarnet")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SEKARNET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPortalConfig()
	v.SetDefault("portal.merchantName", defaults.MerchantName)
	v.SetDefault("portal.merchantCity", defaults.MerchantCity)
	v.SetDefault("portal.merchantPostalCode", defaults.MerchantPostalCode)
	v.SetDefault("portal.qrImageUrl", defaults.QRImageURL)
	v.SetDefault("portal.qrImagePath", defaults.QRImagePath)
	v.SetDefault("portal.qrDownloadUrl", defaults.QRDownloadURL)
	v.SetDefault("portal.maxProofBytes", defaults.MaxProofBytes)
	v.SetDefault("portal.instructions", defaults.Instructions)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg PortalConfig
	if err := v.UnmarshalKey("portal", &cfg); err != nil {
		return nil, err
	}
	if err := validatePortalConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PortalConfigHolder{}
	holder.current.Store(cfg)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated PortalConfig
			if err := v.UnmarshalKey("portal", &updated); err != nil {
				log.Warn("reload failed", zap.Error(err))
				return
			}
			if err := validatePortalConfig(updated); err != nil {
				log.Warn("invalid config ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

func (h *PortalConfigHolder) Get() PortalConfig {
	return h.current.Load().(PortalConfig)
}

func validatePortalConfig(cfg PortalConfig) error {
	if strings.TrimSpace(cfg.MerchantName) == "" {
		return errors.New("portal.merchantName cannot be empty")
	}
	if cfg.MaxProofBytes <= 0 {
		return errors.New("portal.maxProofBytes must be positive")
	}
	return nil
}
