package config

// v0Tov1 stamps the version into files written before versioning existed,
// and rewrites them with documentation for every field
func v0Tov1(cfgPath string) ([]byte, error) {
	cfg, err := FromFile(cfgPath, DefaultDealbot())
	if err != nil {
		return nil, err
	}
	cfg.ConfigVersion = 1
	return ConfigUpdate(cfg, DefaultDealbot(), true, false)
}
