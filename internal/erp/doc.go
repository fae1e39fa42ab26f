// Package erp is the HTTP client of the instance customization API.
//
// It performs the login and logout exchanges of the entity endpoint and the
// Import, publishBegin and publishEnd calls of the customization endpoint.
// Authentication cookies live in the cookie jar of the session's HTTP client.
package erp
