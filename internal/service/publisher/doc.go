// Package publisher starts server side publication of uploaded projects.
package publisher
