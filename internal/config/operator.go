package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store"
)

// MainMode is the persisted operating authority.
type MainMode int

const (
	MainCloud   MainMode = 0
	MainOffline MainMode = 1
)

// Operator is the ConfigDU snapshot taken at every mode entry.
type Operator struct {
	Mode             MainMode
	EnableOSDP       bool
	UseSecureChannel bool
	MQTTEnabled      bool
	EnableIVAR       bool
	IVARServer       string
	IVARTerminals    map[int]string // reader id -> IVAR terminal name
	WebServiceURL    string
	EasyAdd          bool
	EasyRemove       bool
}

// LoadOperator reads the ConfigDU table. Missing keys take their defaults.
func LoadOperator(ctx context.Context, props store.PropertyStore) (Operator, error) {
	get := func(key, def string) (string, error) {
		v, err := props.GetProp(ctx, store.TableConfigDU, key)
		if errors.Is(err, store.ErrNotFound) {
			return def, nil
		}
		if err != nil {
			return "", fmt.Errorf("load operator config %s: %w", key, err)
		}
		return strings.TrimSpace(v), nil
	}

	var (
		op   Operator
		errs []error
	)
	flag := func(key string, def bool) bool {
		d := "0"
		if def {
			d = "1"
		}
		v, err := get(key, d)
		errs = append(errs, err)
		return v == "1" || strings.EqualFold(v, "true")
	}
	str := func(key string) string {
		v, err := get(key, "")
		errs = append(errs, err)
		return v
	}

	if str(store.PropMode) == "0" {
		op.Mode = MainCloud
	} else {
		op.Mode = MainOffline
	}
	op.EnableOSDP = flag("enable_osdp", false)
	op.UseSecureChannel = flag("use_secure_channel", false)
	op.MQTTEnabled = flag("mqttenabled", false)
	op.EnableIVAR = flag("enable_ivar", false)
	op.IVARServer = str("ivar_server")
	op.IVARTerminals = map[int]string{1: str("ivar_term_name1"), 2: str("ivar_term_name2")}
	op.WebServiceURL = str("ws")
	op.EasyAdd = flag("easy_add", true)
	op.EasyRemove = flag("easy_remove", true)

	if err := errors.Join(errs...); err != nil {
		return Operator{}, err
	}
	return op, nil
}
