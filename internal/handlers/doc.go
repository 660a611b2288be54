// Package handlers provides the stock binding handlers: text, attr,
// visible, hidden, css, using and let.
package handlers
