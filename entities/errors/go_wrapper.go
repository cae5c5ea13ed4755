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

package errors

import (
	"os"
	"runtime/debug"
	"strings"

	"github.com/sirupsen/logrus"
)

// GoWrapper runs f in a new goroutine and recovers from panics unless
// DISABLE_RECOVERY_ON_PANIC is set.
func GoWrapper(f func(), logger logrus.FieldLogger) {
	go func() {
		defer func() {
			if !enabled(os.Getenv("DISABLE_RECOVERY_ON_PANIC")) {
				if r := recover(); r != nil {
					logger.WithField("action", "go_wrapper").
						Errorf("Recovered from panic: %v", r)
					debug.PrintStack()
				}
			}
		}()
		f()
	}()
}

func enabled(value string) bool {
	switch strings.ToLower(value) {
	case "on", "enabled", "1", "true":
		return true
	default:
		return false
	}
}
