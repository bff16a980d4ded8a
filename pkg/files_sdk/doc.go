// Package files_sdk bootstraps a files.Client from environment variables.
// FILES_RUNTIME_MODE selects between the HTTP backend addressed by
// FILES_API_URL and an in-memory mock that can be pre-populated from the seed
// file named by FILES_MOCK_SEED. Both modes return the same client type, so
// callers do not need to know which one is active.
package files_sdk
