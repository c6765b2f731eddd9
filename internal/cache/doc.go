// Package cache implements the permission cache backends: an in-process LRU
// and a Redis store shared between instances. Both satisfy auth.PermissionCache.
package cache
