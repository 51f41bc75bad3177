// Command bookwyrm runs the book-tracking API and its maintenance jobs.
//
// Usage:
//
//	# Start the HTTP and gRPC servers with the scheduled trash cleanup
//	bookwyrm serve
//
//	# Apply database migrations and exit
//	bookwyrm migrate
//
//	# Permanently delete books that have been in the trash for more than 30 days
//	bookwyrm cleanup-deleted-books --days 30 --dry-run
package main

func main() {
	Execute()
}
