package rubygems

import "github.com/git-pkgs/slopguard/internal/detect"

// topGems is the curated popular-gem list the name-similarity detectors
// compare against. Download counts are coarse; only the order of
// magnitude matters for adoption-ratio checks.
var topGems = []detect.PopularPackage{
	{Name: "rails", Downloads: 500_000_000},
	{Name: "rake", Downloads: 900_000_000},
	{Name: "rack", Downloads: 800_000_000},
	{Name: "rspec", Downloads: 700_000_000},
	{Name: "bundler", Downloads: 1_100_000_000},
	{Name: "nokogiri", Downloads: 600_000_000},
	{Name: "json", Downloads: 800_000_000},
	{Name: "activesupport", Downloads: 600_000_000},
	{Name: "activerecord", Downloads: 400_000_000},
	{Name: "actionpack", Downloads: 400_000_000},
	{Name: "thor", Downloads: 600_000_000},
	{Name: "puma", Downloads: 300_000_000},
	{Name: "sidekiq", Downloads: 250_000_000},
	{Name: "devise", Downloads: 150_000_000},
	{Name: "faraday", Downloads: 400_000_000},
	{Name: "rubocop", Downloads: 350_000_000},
	{Name: "pry", Downloads: 300_000_000},
	{Name: "minitest", Downloads: 700_000_000},
	{Name: "sinatra", Downloads: 150_000_000},
	{Name: "capybara", Downloads: 200_000_000},
	{Name: "redis", Downloads: 250_000_000},
	{Name: "pg", Downloads: 300_000_000},
	{Name: "mysql2", Downloads: 150_000_000},
	{Name: "sqlite3", Downloads: 200_000_000},
	{Name: "sassc", Downloads: 150_000_000},
	{Name: "webmock", Downloads: 250_000_000},
	{Name: "simplecov", Downloads: 250_000_000},
	{Name: "jwt", Downloads: 200_000_000},
	{Name: "httparty", Downloads: 200_000_000},
	{Name: "kaminari", Downloads: 100_000_000},
}
