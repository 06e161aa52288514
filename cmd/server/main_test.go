package main

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/yourorg/vault-metrics/internal/config"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "refresh", "seed"}, names)
}

func TestSetupLogging(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)

	setupLogging(config.Config{LogFormat: "json", LogLevel: "debug"})
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	_, isJSON := logrus.StandardLogger().Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)

	setupLogging(config.Config{LogFormat: "text", LogLevel: "nonsense"})
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}

func TestNewSignerDisabled(t *testing.T) {
	s, err := newSigner(config.Config{})
	assert.NoError(t, err)
	assert.Nil(t, s)
}
