package conf

import (
	"github.com/tphakala/quack-go/internal/secrets"
)

// resolveSecrets replaces credential settings with their resolved values:
// secret files first, then ${ENV} references.
func resolveSecrets(s *Settings) error {
	var err error

	if s.Storage.MySQL.Password, err = secrets.ResolveField("storage.mysql.password",
		s.Storage.MySQL.PasswordFile, s.Storage.MySQL.Password); err != nil {
		return err
	}
	if s.MQTT.Password, err = secrets.ResolveField("mqtt.password",
		s.MQTT.PasswordFile, s.MQTT.Password); err != nil {
		return err
	}
	if s.Telemetry.DSN, err = secrets.ResolveField("telemetry.dsn", "", s.Telemetry.DSN); err != nil {
		return err
	}
	for i, u := range s.Notify.URLs {
		if s.Notify.URLs[i], err = secrets.ResolveField("notify.urls", "", u); err != nil {
			return err
		}
	}
	return nil
}
