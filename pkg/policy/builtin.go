package policy

// BuiltinPolicies returns the policies every engine starts with.
func BuiltinPolicies() []Policy {
	return []Policy{
		scriptDownloadPipePolicy(),
		machineScopeElevationPolicy(),
		userScopeMachineHivePolicy(),
		unboundedDependencyPolicy(),
		uninstallCleanupPolicy(),
	}
}

func scriptDownloadPipePolicy() Policy {
	return Policy{
		Name:        "script-download-pipe",
		Description: "Rejects scripts that pipe a download straight into a shell",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package installer.policies.scripts

deny contains violation if {
	some step in input.workflow.steps
	step.kind == "script"
	regex.match(` + "`(curl|wget)[^|;&]*\\|\\s*(sudo\\s+)?(ba|z)?sh\\b`" + `, step.config.script)
	violation := {
		"message": "script pipes a download into a shell, download then verify instead",
		"step": step.name,
	}
}
`,
	}
}

func machineScopeElevationPolicy() Policy {
	return Policy{
		Name:        "machine-scope-elevation",
		Description: "Machine-wide installs should require administrator rights up front",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package installer.policies.elevation

deny contains violation if {
	policy := input.workflow.configurations.policy
	policy.scope == "machine"
	not policy.require_administrator
	violation := {"message": "machine-wide install does not set require_administrator"}
}
`,
	}
}

func userScopeMachineHivePolicy() Policy {
	return Policy{
		Name:        "user-scope-machine-hive",
		Description: "Per-user installs must not write the machine registry hive",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package installer.policies.registry

machine_hive(key) if startswith(upper(key), "HKLM")

machine_hive(key) if startswith(upper(key), "HKEY_LOCAL_MACHINE")

deny contains violation if {
	input.workflow.configurations.policy.scope == "user"
	some step in input.workflow.steps
	step.kind == "registry_value"
	machine_hive(step.config.key)
	violation := {
		"message": sprintf("per-user install writes machine key %s", [step.config.key]),
		"step": step.name,
	}
}
`,
	}
}

func unboundedDependencyPolicy() Policy {
	return Policy{
		Name:        "unbounded-dependency",
		Description: "Dependency ranges should have an upper bound",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package installer.policies.dependencies

unbounded(r) if trim_space(r) in {"", "*", "x", "X"}

unbounded(r) if {
	startswith(trim_space(r), ">")
	not contains(r, "<")
}

deny contains violation if {
	some dep in input.workflow.dependencies
	unbounded(dep.range)
	violation := {"message": sprintf("dependency %s range '%s' has no upper bound", [dep.name, dep.range])}
}
`,
	}
}

func uninstallCleanupPolicy() Policy {
	return Policy{
		Name:        "uninstall-cleanup",
		Description: "Uninstalls should remove what the journal recorded",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package installer.policies.uninstall

deny contains violation if {
	input.tag == "uninstall"
	count(input.workflow.steps) > 0
	not any_remove_recorded
	violation := {"message": "uninstall has no remove_recorded step, recorded files and keys are left behind"}
}

any_remove_recorded if {
	some step in input.workflow.steps
	step.kind == "remove_recorded"
}
`,
	}
}
