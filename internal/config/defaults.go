package config

// applyDefaults fills optional manifest fields with their defaults.
func applyDefaults(m *Manifest) {
	if m.Format.HTML.Theme == "" {
		m.Format.HTML.Theme = "default"
	}
	if m.Format.HTML.Freeze == "" {
		m.Format.HTML.Freeze = FreezeOff
	}
	if m.Output.Directory == "" {
		m.Output.Directory = "./site"
	}
	if m.Preview.Port == 0 {
		m.Preview.Port = 8080
	}
	if m.Notifications.NATS != nil && m.Notifications.NATS.Subject == "" {
		m.Notifications.NATS.Subject = "bookbuilder.builds"
	}
}
