//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2025 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package rest

import (
	"errors"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// NodeJSONFormatter adds the name of the node to every entry
type NodeJSONFormatter struct {
	*logrus.JSONFormatter
	node string
}

func NewNodeJSONFormatter(node string) logrus.Formatter {
	return &NodeJSONFormatter{&logrus.JSONFormatter{}, node}
}

func (f *NodeJSONFormatter) Format(e *logrus.Entry) ([]byte, error) {
	e.Data["node"] = f.node
	return f.JSONFormatter.Format(e)
}

type NodeTextFormatter struct {
	*logrus.TextFormatter
	node string
}

func NewNodeTextFormatter(node string) logrus.Formatter {
	return &NodeTextFormatter{&logrus.TextFormatter{}, node}
}

func (f *NodeTextFormatter) Format(e *logrus.Entry) ([]byte, error) {
	e.Data["node"] = f.node
	return f.TextFormatter.Format(e)
}

// NewLogger does not look at the regular config object, as logging needs
// to work before the configuration is even loaded. LOG_FORMAT and
// LOG_LEVEL are read directly.
//
// Defaults to log level info and json format
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	if os.Getenv("LOG_FORMAT") != "text" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logLevelFromString(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// ConfigureLogger applies what the loaded config knows about logging
func ConfigureLogger(logger *logrus.Logger, node string, debug bool) {
	if os.Getenv("LOG_FORMAT") == "text" {
		logger.SetFormatter(NewNodeTextFormatter(node))
	} else {
		logger.SetFormatter(NewNodeJSONFormatter(node))
	}
	if debug && logger.GetLevel() < logrus.DebugLevel {
		logger.SetLevel(logrus.DebugLevel)
	}
}

var errlogLevelNotRecognized = errors.New("log level not recognized")

// logLevelFromString converts a string to a logrus log level, returns a logLevelNotRecognized
// error if the string is not recognized. level is case insensitive.
func logLevelFromString(level string) (logrus.Level, error) {
	switch strings.ToLower(level) {
	case "panic":
		return logrus.PanicLevel, nil
	case "fatal":
		return logrus.FatalLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	case "trace":
		return logrus.TraceLevel, nil
	default:
		return 0, errlogLevelNotRecognized
	}
}
