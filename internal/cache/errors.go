// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import "errors"

// ErrUnknownLocalChat is returned by GetChat for a local id that is not
// cached. Local chats exist only in this process.
var ErrUnknownLocalChat = errors.New("local chat not found")
