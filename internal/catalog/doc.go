// Package catalog reads product data from the catalog service.
package catalog
