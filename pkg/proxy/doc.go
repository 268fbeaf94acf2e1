// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package proxy exposes a stable set of local transit endpoints and forwards
// each one to exactly one upstream API call. Query parameters are renamed and
// defaulted per endpoint, the upstream credential is injected, and the JSON
// body the upstream returns is written back unmodified. Nothing is cached,
// retried or reshaped; upstream failures surface as gateway errors.
package proxy
