// Package uploader sends package files to the instance, one project per call.
package uploader
