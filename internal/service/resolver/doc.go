// Package resolver turns a dated package directory into the ordered list of
// customization projects to deploy.
package resolver
