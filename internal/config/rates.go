package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RateConfig is the compiled-in GST rate table. It is the fallback of last
// resort: the database-backed rate table is authoritative, and this table is
// consulted only when the store is unreachable or empty at boot. An operator
// can override it with a rates.yml without rebuilding.
type RateConfig struct {
	Categories []CategoryConfig  `mapstructure:"categories"`
	HSNCodes   map[string]string `mapstructure:"hsnCodes"`
	Keywords   map[string]string `mapstructure:"keywords"`
}

type CategoryConfig struct {
	Code        string  `mapstructure:"code"`
	Name        string  `mapstructure:"name"`
	HSNPrefix   string  `mapstructure:"hsnPrefix"`
	Rate        int     `mapstructure:"rate"`
	CessRate    float64 `mapstructure:"cessRate"`
	Description string  `mapstructure:"description"`
}

// DefaultRateConfig covers the common kirana assortment. Rates follow the
// statutory slabs in force; cess applies to aerated drinks and pan masala.
func DefaultRateConfig() RateConfig {
	return RateConfig{
		Categories: []CategoryConfig{
			{Code: "FRESH_PRODUCE", Name: "Fresh Fruits & Vegetables", HSNPrefix: "0702", Rate: 0, Description: "Unprocessed fruits and vegetables"},
			{Code: "FOOD_GRAINS", Name: "Unbranded Food Grains", HSNPrefix: "1006", Rate: 0, Description: "Unbranded rice, wheat, atta, pulses"},
			{Code: "BRANDED_STAPLES", Name: "Branded Staples", HSNPrefix: "1101", Rate: 5, Description: "Branded and packaged grains and flour"},
			{Code: "DAIRY", Name: "Dairy Products", HSNPrefix: "0403", Rate: 5, Description: "Milk, curd, paneer, butter milk"},
			{Code: "TEA_COFFEE", Name: "Tea & Coffee", HSNPrefix: "0902", Rate: 5, Description: "Tea, coffee and related beverages"},
			{Code: "EDIBLE_OIL", Name: "Edible Oils", HSNPrefix: "1512", Rate: 5, Description: "Cooking oils and vanaspati"},
			{Code: "PACKAGED_FOOD", Name: "Packaged Food", HSNPrefix: "2106", Rate: 12, Description: "Processed and packaged food preparations"},
			{Code: "BISCUITS", Name: "Biscuits & Bakery", HSNPrefix: "1905", Rate: 18, Description: "Biscuits, cakes and bakery products"},
			{Code: "PERSONAL_CARE", Name: "Personal Care", HSNPrefix: "3304", Rate: 18, Description: "Soaps, shampoos, cosmetics"},
			{Code: "DETERGENTS", Name: "Detergents & Cleaning", HSNPrefix: "3402", Rate: 18, Description: "Washing powder, cleaners"},
			{Code: "HOUSEHOLD_GOODS", Name: "Household Goods", HSNPrefix: "3924", Rate: 18, Description: "Plasticware and household articles"},
			{Code: "AERATED_DRINKS", Name: "Aerated Drinks", HSNPrefix: "2202", Rate: 28, CessRate: 12, Description: "Carbonated and caffeinated beverages"},
			{Code: "PAN_MASALA", Name: "Pan Masala", HSNPrefix: "2106", Rate: 28, CessRate: 60, Description: "Pan masala preparations"},
		},
		HSNCodes: map[string]string{
			"0702":     "FRESH_PRODUCE",
			"1006":     "FOOD_GRAINS",
			"10063020": "FOOD_GRAINS",
			"1101":     "BRANDED_STAPLES",
			"0403":     "DAIRY",
			"04031000": "DAIRY",
			"0902":     "TEA_COFFEE",
			"09024010": "TEA_COFFEE",
			"1512":     "EDIBLE_OIL",
			"2106":     "PACKAGED_FOOD",
			"21069099": "PACKAGED_FOOD",
			"1905":     "BISCUITS",
			"19053100": "BISCUITS",
			"3304":     "PERSONAL_CARE",
			"3401":     "PERSONAL_CARE",
			"3402":     "DETERGENTS",
			"3924":     "HOUSEHOLD_GOODS",
			"2202":     "AERATED_DRINKS",
			"22021010": "AERATED_DRINKS",
		},
		Keywords: map[string]string{
			"rice":       "FOOD_GRAINS",
			"wheat":      "FOOD_GRAINS",
			"atta":       "FOOD_GRAINS",
			"dal":        "FOOD_GRAINS",
			"milk":       "DAIRY",
			"curd":       "DAIRY",
			"paneer":     "DAIRY",
			"tea":        "TEA_COFFEE",
			"coffee":     "TEA_COFFEE",
			"oil":        "EDIBLE_OIL",
			"ghee":       "EDIBLE_OIL",
			"biscuit":    "BISCUITS",
			"cake":       "BISCUITS",
			"soap":       "PERSONAL_CARE",
			"shampoo":    "PERSONAL_CARE",
			"toothpaste": "PERSONAL_CARE",
			"detergent":  "DETERGENTS",
			"cola":       "AERATED_DRINKS",
			"soda":       "AERATED_DRINKS",
		},
	}
}

type RateConfigHolder struct {
	current atomic.Value // holds RateConfig
}

func NewRateConfigHolder() (*RateConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("rates")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/vyaparai/config") // Volume-mounted config
	v.AddConfigPath("/etc/vyaparai")            // System config
	v.AddConfigPath(".")                        // Current directory (dev mode)

	v.SetEnvPrefix("VYAPARAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := DefaultRateConfig()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// no rates.yml: compiled-in defaults stay in effect
	} else {
		if err := v.UnmarshalKey("rates", &cfg); err != nil {
			return nil, err
		}
	}
	if err := validateRateConfig(cfg); err != nil {
		return nil, err
	}

	holder := &RateConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated RateConfig
		if err := v.UnmarshalKey("rates", &updated); err != nil {
			log.Printf("[rate-config] reload failed: %v", err)
			return
		}
		if err := validateRateConfig(updated); err != nil {
			log.Printf("[rate-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[rate-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *RateConfigHolder) Get() RateConfig {
	return h.current.Load().(RateConfig)
}

func validateRateConfig(cfg RateConfig) error {
	if len(cfg.Categories) == 0 {
		return errors.New("rates.categories cannot be empty")
	}
	known := make(map[string]bool, len(cfg.Categories))
	for _, c := range cfg.Categories {
		if c.Code == "" {
			return errors.New("rates.categories entry is missing a code")
		}
		known[c.Code] = true
	}
	// Every mapped HSN code must point at a category that exists.
	for hsn, code := range cfg.HSNCodes {
		if !known[code] {
			return errors.New("rates.hsnCodes." + hsn + " references unknown category " + code)
		}
	}
	for kw, code := range cfg.Keywords {
		if !known[code] {
			return errors.New("rates.keywords." + kw + " references unknown category " + code)
		}
	}
	return nil
}
