// Package rate implements fixed-window attempt limiting on Redis
// counters for the login and refresh paths.
package rate
