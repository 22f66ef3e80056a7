package config

import "strings"

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	c.Storage.AccessKey = strings.TrimSpace(c.Storage.AccessKey)
	c.Storage.SecretKey = strings.TrimSpace(c.Storage.SecretKey)
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)

	c.Fal.APIKey = strings.TrimSpace(c.Fal.APIKey)
	c.Fal.BaseURL = strings.TrimRight(strings.TrimSpace(c.Fal.BaseURL), "/")
	c.Quansic.BaseURL = strings.TrimRight(strings.TrimSpace(c.Quansic.BaseURL), "/")
	c.MusicBrainz.BaseURL = strings.TrimRight(strings.TrimSpace(c.MusicBrainz.BaseURL), "/")
	c.Whisper.BaseURL = strings.TrimRight(strings.TrimSpace(c.Whisper.BaseURL), "/")
	c.Demucs.BaseURL = strings.TrimRight(strings.TrimSpace(c.Demucs.BaseURL), "/")
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}
