// Package config loads and merges asmexplain configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (ASMEXPLAIN_MODEL, ASMEXPLAIN_STORAGE_DIR, etc.,
//     plus LLM_PROVIDER, GOOGLE_MODEL and GOOGLE_API_KEY)
//  3. A .env file in the working directory, which never overrides variables
//     already set in the environment
//  4. Config file ($XDG_CONFIG_HOME/asmexplain/config.json)
//  5. Built-in defaults
//
// The API key is only ever read from the environment; it is not part of the
// config file. Use [Load] to obtain a merged and validated [Config], [Save]
// to write one, and [SetField] to update a single key.
package config
