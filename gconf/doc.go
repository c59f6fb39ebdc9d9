/*
Package gconf implements a configuration store intended to be used as a
per-package, in-database configuration singleton.

A configuration is seeded once from the node options file (the "conf"
section, keyed by package name) and validated before being written. Every
component later loads it from the same store it keeps its records in, so a
node restarted on an existing database keeps the configuration it was
initialized with.
*/
package gconf
