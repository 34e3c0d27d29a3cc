package config

import (
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Features is the platform-wide feature flag bag.
type Features struct {
	// UseMicrosites enables host based microsite resolution.
	UseMicrosites bool `mapstructure:"use_microsites"`
	// AdvancedSecurity enforces the cross-microsite org filter on course URLs.
	AdvancedSecurity bool `mapstructure:"advanced_security"`
	// EnableEnrollmentMetrics toggles the enrollment monitoring counter.
	EnableEnrollmentMetrics bool `mapstructure:"enable_enrollment_metrics"`
}

func DefaultFeatures() Features {
	return Features{
		UseMicrosites:           true,
		AdvancedSecurity:        true,
		EnableEnrollmentMetrics: true,
	}
}

// FeatureSource exposes the current feature flags.
type FeatureSource interface {
	Features() Features
}

type FeaturesHolder struct {
	current atomic.Value // holds Features
}

// NewStaticFeatures returns a holder that never reloads.
func NewStaticFeatures(f Features) *FeaturesHolder {
	holder := &FeaturesHolder{}
	holder.current.Store(f)
	return holder
}

func NewFeaturesHolder() (*FeaturesHolder, error) {
	v := viper.New()

	v.SetConfigName("features")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/campus")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CAMPUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultFeatures()
	v.SetDefault("features.use_microsites", defaults.UseMicrosites)
	v.SetDefault("features.advanced_security", defaults.AdvancedSecurity)
	v.SetDefault("features.enable_enrollment_metrics", defaults.EnableEnrollmentMetrics)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var f Features
	if err := v.UnmarshalKey("features", &f); err != nil {
		return nil, err
	}

	holder := NewStaticFeatures(f)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated Features
			if err := v.UnmarshalKey("features", &updated); err != nil {
				log.Printf("[features] reload failed: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[features] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *FeaturesHolder) Features() Features {
	if h == nil {
		return DefaultFeatures()
	}
	return h.current.Load().(Features)
}
