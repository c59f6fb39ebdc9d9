// Package server implements the commands of the node binary.
package server
