// Package files exposes a client for the site File API: listing, reading,
// creating, updating and deleting file records, fetching remote URLs into a
// folder, downloading file contents, and confirming browser-style uploads by
// polling the folder listing until the uploaded names appear.
//
// The HTTP surface is rooted at the "File" resource below the configured API
// base URL. files_sdk.NewFromEnv (package pkg/files_sdk) selects between the
// HTTP backend and the in-memory backend of package mock so the same code can
// run inside and outside a deployment.
package files
