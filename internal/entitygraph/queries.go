package entitygraph

// GraphQL documents. The backend's schema predates this client and is not
// uniform: single-entity lookups return an object, filtered lookups return
// either a bare array or a paginated connection depending on the resolver.
// The decode helpers in decode.go absorb those differences.

const entityFields = `
    id
    shortId
    name
    description
    type
    attributes {
      name
      value
    }
    relationships {
      type
      to {
        id
        shortId
        name
        description
        type
      }
    }`

const queryEntityByID = `
query EntityByID($id: ID!) {
  entity(id: $id) {` + entityFields + `
  }
}`

const queryEntitiesByShortID = `
query EntitiesByShortID($shortId: String!) {
  entities(filter: { attribute: { name: "shortId", value: $shortId } }) {` + entityFields + `
  }
}`

const queryEntitiesByType = `
query EntitiesByType($type: String!, $pageSize: Int!, $offset: Int!) {
  entities(filter: { type: $type }, limit: $pageSize, offset: $offset) {` + entityFields + `
  }
}`

const querySearchRepositories = `
query SearchRepositories($term: String!) {
  searchEntities(term: $term, type: "repository") {` + entityFields + `
  }
}`

const queryVulnerabilitiesByEntity = `
query VulnerabilitiesByEntity($entityId: ID!) {
  vulnerabilities(entityId: $entityId) {
    id
    title
    severity
    status
  }
}`

const queryVulnerabilityDetails = `
query VulnerabilityDetails($id: ID!) {
  vulnerability(id: $id) {
    location
    severity
    scanType
    originatingSystem
    description
    packageData
    packageIdentifier
    recommendedVersion
  }
}`

const queryIncidentsByEntity = `
query IncidentsByEntity($entityId: ID!) {
  incidents(entityId: $entityId) {
    id
    title
    status
    severity
    url
  }
}`
