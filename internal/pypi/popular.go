package pypi

import "github.com/git-pkgs/slopguard/internal/detect"

// topProjects is the fallback popular list used when the ranked
// download feed cannot be fetched. Counts are 30-day downloads, coarse.
var topProjects = []detect.PopularPackage{
	{Name: "boto3", Downloads: 1_200_000_000},
	{Name: "urllib3", Downloads: 900_000_000},
	{Name: "requests", Downloads: 800_000_000},
	{Name: "certifi", Downloads: 750_000_000},
	{Name: "numpy", Downloads: 500_000_000},
	{Name: "pandas", Downloads: 350_000_000},
	{Name: "django", Downloads: 60_000_000},
	{Name: "flask", Downloads: 150_000_000},
	{Name: "pytest", Downloads: 250_000_000},
	{Name: "setuptools", Downloads: 700_000_000},
	{Name: "pip", Downloads: 400_000_000},
	{Name: "pydantic", Downloads: 400_000_000},
	{Name: "sqlalchemy", Downloads: 200_000_000},
	{Name: "fastapi", Downloads: 150_000_000},
	{Name: "scipy", Downloads: 200_000_000},
	{Name: "matplotlib", Downloads: 150_000_000},
	{Name: "pyyaml", Downloads: 500_000_000},
	{Name: "click", Downloads: 450_000_000},
	{Name: "rich", Downloads: 300_000_000},
	{Name: "httpx", Downloads: 200_000_000},
	{Name: "scikit-learn", Downloads: 150_000_000},
	{Name: "tensorflow", Downloads: 25_000_000},
	{Name: "torch", Downloads: 60_000_000},
	{Name: "cryptography", Downloads: 450_000_000},
	{Name: "jinja2", Downloads: 400_000_000},
}
