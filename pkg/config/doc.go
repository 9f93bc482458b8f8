// Package config loads the installer's settings and its YAML workflows.
//
// Settings come from an optional YAML file layered over DefaultSettings and
// are then overridden by FROYO_* environment variables:
//
//	FROYO_LOG_LEVEL, FROYO_LOG_FORMAT, FROYO_LOG_OUTPUT
//	FROYO_JOURNAL_DIR, FROYO_STATE_PATH, FROYO_CACHE_DIR, FROYO_DOWNLOAD_TIMEOUT
//	FROYO_TRACING_ENABLED, FROYO_TRACING_EXPORTER, FROYO_TRACING_ENDPOINT
//	FROYO_METRICS_ENABLED, FROYO_METRICS_TEXTFILE, FROYO_ENVIRONMENT
//	FROYO_POLICY_PATH (a list joined by the OS path separator)
//
// A workflow file declares variables, configuration blocks, dependencies and
// stages of jobs of steps:
//
//	name: sample
//	variables:
//	  Root: /opt/sample
//	application:
//	  name: Sample
//	  version: 1.2.0
//	  install_directory: "{Root}"
//	dependencies:
//	  - name: git
//	    type: tool
//	    range: ">=2.30"
//	    command: git
//	stages:
//	  - name: files
//	    defaults: {os: linux}
//	    steps:
//	      - name: config
//	        task: write_file
//	        with:
//	          path: "{Application.InstallDirectory}/app.conf"
//	          content: "version={Application.Version}"
//
// The with block of a step is decoded by the task registry according to its
// task kind.
package config
