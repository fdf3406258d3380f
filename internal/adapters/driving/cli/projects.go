package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
)

var projectsJSON bool

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Browse your projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects you can upload to",
	RunE:  runProjectsList,
}

var projectsShowCmd = &cobra.Command{
	Use:   "show <project-id>",
	Short: "Show project details",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectsShow,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the server is reachable",
	RunE:  runHealth,
}

func init() {
	projectsCmd.PersistentFlags().BoolVar(&projectsJSON, "json", false, "output as JSON")
	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsShowCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(healthCmd)
}

func runProjectsList(cmd *cobra.Command, _ []string) error {
	if projectService == nil {
		return errors.New("project service not configured")
	}

	projects, err := projectService.List(cmd.Context())
	if err != nil {
		return withHint(fmt.Errorf("failed to list projects: %w", err))
	}

	if projectsJSON {
		return printJSON(cmd, projects)
	}

	if len(projects) == 0 {
		cmd.Println("No projects found.")
		return nil
	}

	for i := range projects {
		marker := " "
		if projects[i].ID == clientConfig.DefaultProjectID {
			marker = "*"
		}
		cmd.Printf("%s %-24s  %s\n", marker, projects[i].ID, projects[i].Name)
	}
	return nil
}

func runProjectsShow(cmd *cobra.Command, args []string) error {
	if projectService == nil {
		return errors.New("project service not configured")
	}

	project, err := projectService.Get(cmd.Context(), args[0])
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("project not found: %s", args[0])
		}
		return withHint(fmt.Errorf("failed to get project: %w", err))
	}

	if projectsJSON {
		return printJSON(cmd, project)
	}

	cmd.Printf("ID:          %s\n", project.ID)
	cmd.Printf("Name:        %s\n", project.Name)
	if project.Description != "" {
		cmd.Printf("Description: %s\n", project.Description)
	}
	if project.Owner != "" {
		cmd.Printf("Owner:       %s\n", project.Owner)
	}
	cmd.Printf("Images:      %d\n", project.ImageCount)
	if !project.UpdatedAt.IsZero() {
		cmd.Printf("Updated:     %s\n", project.UpdatedAt.Local().Format(time.RFC3339))
	}
	return nil
}

func runHealth(cmd *cobra.Command, _ []string) error {
	if projectService == nil {
		return errors.New("project service not configured")
	}

	status, err := projectService.Health(cmd.Context())
	if err != nil {
		return fmt.Errorf("server %s unreachable: %w", clientConfig.ServerURL, err)
	}
	if !status.IsHealthy() {
		return fmt.Errorf("server %s reports status %q", clientConfig.ServerURL, status.Status)
	}

	cmd.Printf("Server %s is healthy", clientConfig.ServerURL)
	if status.Version != "" {
		cmd.Printf(" (version %s)", status.Version)
	}
	cmd.Println()
	return nil
}
