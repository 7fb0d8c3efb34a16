/*
 * Copyright (c) 2023. Anton Starikov -- All Rights Reserved
 *
 * This file is part of OTRVHUB project.
 *
 * OTRVHUB is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as the Free Software Foundation,
 * either version 3 of the License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/antst/otrvhub/internal"
	"github.com/antst/otrvhub/internal/config"
	"github.com/antst/otrvhub/internal/logger"
)

// Build version, overridden with flag during build.
var version = "devel"

func main() {
	logger.L().Warnf("OpenTRV heating hub, version: %+v", version)
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Get()
	c, err := internal.Open(ctx, cfg)
	if err != nil {
		logger.L().Errorf("Cannot start: %v", err)
		return
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.L().Error(err)
		}
	}()

	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		logger.L().Error(err)
	}
	logger.L().Info("Stopped")
}
