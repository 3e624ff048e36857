// Package token holds the allow-list of rule fields whose values are
// extracted.
//
// The built-in list covers the endpoint event categories found in rule
// files (image loads, processes, file writes, registry keys, DNS lookups,
// IPv4 connections, URL monitoring and address notifications). An AllowList
// starts from that list and can be extended with glob patterns or narrowed
// by disabling individual tokens, both from the configuration file.
package token
