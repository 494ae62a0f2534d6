// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the chatcore packages.
//
// # Key Functions
//
//   - WriteFileAtomic: crash-safe file replacement used by the config writer
//   - Clip: display-width aware truncation for terminal listings
//   - PadRight: display-width aware padding for table columns
package util
