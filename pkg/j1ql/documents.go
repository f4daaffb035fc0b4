package j1ql

// Page sizes used by the legacy skip/limit pagination mode.
const (
	SkipCount  = 250
	LimitCount = 250
)

// Values accepted by the queryV1 deferredResponse argument.
const (
	DeferredForce    = "FORCE"
	DeferredDisabled = "DISABLED"
)

// QueryV1 is the non-cursor query document used by skip/limit pagination.
const QueryV1 = `
  query J1QL($query: String!, $variables: JSON, $dryRun: Boolean, $includeDeleted: Boolean) {
    queryV1(query: $query, variables: $variables, dryRun: $dryRun, includeDeleted: $includeDeleted) {
      type
      data
    }
  }
`

// CursorQueryV1 requests one cursor page with deferred responses disabled.
const CursorQueryV1 = `
  query J1QL_v2($query: String!, $variables: JSON, $flags: QueryV1Flags, $includeDeleted: Boolean, $cursor: String) {
    queryV1(
      query: $query
      variables: $variables
      deferredResponse: DISABLED
      flags: $flags
      includeDeleted: $includeDeleted
      cursor: $cursor
    ) {
      type
      data
      cursor
      __typename
    }
  }
`

// DeferredQueryV1 asks the server to compute the result asynchronously and
// return a download URL.
const DeferredQueryV1 = `
  query J1QLDeferredResponse(
    $query: String!
    $variables: JSON
    $flags: QueryV1Flags
    $includeDeleted: Boolean
    $deferredResponse: DeferredResponseOption
    $cursor: String
  ) {
    queryV1(
      query: $query
      variables: $variables
      deferredResponse: $deferredResponse
      flags: $flags
      includeDeleted: $includeDeleted
      cursor: $cursor
    ) {
      type
      url
      cursor
    }
  }
`

const CreateEntity = `
  mutation CreateEntity(
    $entityKey: String!
    $entityType: String!
    $entityClass: [String!]!
    $timestamp: Long
    $properties: JSON
  ) {
    createEntity(
      entityKey: $entityKey
      entityType: $entityType
      entityClass: $entityClass
      timestamp: $timestamp
      properties: $properties
    ) {
      entity {
        _id
      }
      vertex {
        id
        entity {
          _id
        }
      }
    }
  }
`

const UpdateEntity = `
  mutation UpdateEntity($entityId: String!, $properties: JSON) {
    updateEntity(entityId: $entityId, properties: $properties) {
      entity {
        _id
      }
      vertex {
        id
      }
    }
  }
`

const DeleteEntity = `
  mutation DeleteEntity($entityId: String!, $timestamp: Long) {
    deleteEntity(entityId: $entityId, timestamp: $timestamp) {
      entity {
        _id
      }
      vertex {
        id
        entity {
          _id
        }
        properties
      }
    }
  }
`

const CreateRelationship = `
  mutation CreateRelationship(
    $relationshipKey: String!
    $relationshipType: String!
    $relationshipClass: String!
    $fromEntityId: String!
    $toEntityId: String!
    $properties: JSON
  ) {
    createRelationship(
      relationshipKey: $relationshipKey
      relationshipType: $relationshipType
      relationshipClass: $relationshipClass
      fromEntityId: $fromEntityId
      toEntityId: $toEntityId
      properties: $properties
    ) {
      relationship {
        _id
      }
      edge {
        id
        toVertexId
        fromVertexId
        relationship {
          _id
        }
        properties
      }
    }
  }
`

const UpdateRelationshipV2 = `
  mutation UpdateRelationshipV2($relationship: JSON!, $timestamp: Long) {
    updateRelationshipV2(relationship: $relationship, timestamp: $timestamp) {
      relationship {
        _id
      }
      edge {
        id
        toVertexId
        fromVertexId
        relationship {
          _id
        }
        properties
      }
    }
  }
`

const DeleteRelationship = `
  mutation DeleteRelationship($relationshipId: String!, $timestamp: Long) {
    deleteRelationship(relationshipId: $relationshipId, timestamp: $timestamp) {
      relationship {
        _id
      }
      edge {
        id
        toVertexId
        fromVertexId
        relationship {
          _id
        }
        properties
      }
    }
  }
`

const AllProperties = `
    query getAllAssetProperties {
      getAllAssetProperties
    }
`

const ListRuleInstances = `
    query listRuleInstances($limit: Int, $cursor: String, $filters: ListRuleInstancesFilters) {
      listRuleInstances(limit: $limit, cursor: $cursor, filters: $filters) {
        questionInstances {
          id
          name
          description
          version
          pollingInterval
          templates
          outputs
          tags
          question {
            queries {
              query
              name
              version
              includeDeleted
            }
          }
          operations {
            when
            actions
          }
          latestAlertId
          latestAlertIsActive
          specVersion
          labels {
            labelName
            labelValue
          }
          resourceGroupId
        }
        pageInfo {
          hasNextPage
          endCursor
        }
      }
    }
`

const Questions = `
    query QuestionSearchQuery($searchQuery: String, $cursor: String) {
      questions(searchQuery: $searchQuery, cursor: $cursor) {
        questions {
          id
          title
          description
          tags
          queries {
            name
            query
            version
            includeDeleted
          }
          compliance {
            standard
            requirements
          }
          accountId
          integrationDefinitionId
        }
        totalHits
        pageInfo {
          hasNextPage
          endCursor
        }
      }
    }
`

const ParameterList = `
    query ParameterList($limit: Int, $cursor: String) {
      parameterList(limit: $limit, cursor: $cursor) {
        items {
          name
          value
          secret
          lastUpdatedOn
        }
        pageInfo {
          hasNextPage
          endCursor
        }
      }
    }
`

const Parameter = `
    query Query($name: String!) {
      parameter(name: $name) {
        name
        value
        secret
        lastUpdatedOn
      }
    }
`

const UpsertParameter = `
    mutation UpsertParameter($name: String!, $value: ParameterValue!, $secret: Boolean) {
      setParameter(name: $name, value: $value, secret: $secret) {
        success
      }
    }
`

const CreateSmartClass = `
    mutation CreateSmartClass($input: CreateSmartClassInput!) {
      createSmartClass(input: $input) {
        id
        accountId
        tagName
        description
        ruleId
        __typename
      }
    }
`

const CreateSmartClassQuery = `
    mutation CreateSmartClassQuery($input: CreateSmartClassQueryInput!) {
      createSmartClassQuery(input: $input) {
        id
        smartClassId
        description
        query
        __typename
      }
    }
`

const EvaluateSmartClass = `
    mutation EvaluateSmartClassRule($smartClassId: ID!) {
      evaluateSmartClassRule(smartClassId: $smartClassId) {
        ruleId
        __typename
      }
    }
`

const GetSmartClassDetails = `
    query GetSmartClass($id: ID!) {
      smartClass(id: $id) {
        id
        accountId
        tagName
        description
        ruleId
        queries {
          id
          smartClassId
          description
          query
          __typename
        }
        tags {
          id
          smartClassId
          name
          type
          value
          __typename
        }
        rule {
          lastEvaluationEndOn
          evaluationStep
          __typename
        }
        __typename
      }
    }
`

// ruleInstanceFields is the selection shared by the alert rule mutations.
const ruleInstanceFields = `
        id
        name
        description
        version
        specVersion
        pollingInterval
        templates
        outputs
        tags
        labels {
          labelName
          labelValue
        }
        question {
          queries {
            query
            name
            version
            includeDeleted
          }
        }
        operations {
          when
          actions
        }
        resourceGroupId
        latestAlertId
        latestAlertIsActive
`

const CreateRuleInstance = `
    mutation CreateInlineQuestionRuleInstance($instance: CreateInlineQuestionRuleInstanceInput!) {
      createInlineQuestionRuleInstance(instance: $instance) {` + ruleInstanceFields + `      }
    }
`

const UpdateRuleInstance = `
    mutation UpdateInlineQuestionRuleInstance($instance: UpdateInlineQuestionRuleInstanceInput!) {
      updateInlineQuestionRuleInstance(instance: $instance) {` + ruleInstanceFields + `      }
    }
`

const DeleteRuleInstance = `
    mutation DeleteRuleInstance($id: ID!) {
      deleteRuleInstance(id: $id) {
        id
      }
    }
`

const EvaluateRuleInstance = `
    mutation EvaluateRuleInstance($id: ID!) {
      evaluateRuleInstance(id: $id) {
        outputs {
          name
          value
        }
      }
    }
`

const ListCollectionResults = `
    query ListCollectionResults(
      $collectionType: CollectionType!
      $collectionOwnerId: String!
      $beginTimestamp: Long!
      $endTimestamp: Long!
      $limit: Int
      $cursor: String
    ) {
      listCollectionResults(
        collectionType: $collectionType
        collectionOwnerId: $collectionOwnerId
        beginTimestamp: $beginTimestamp
        endTimestamp: $endTimestamp
        limit: $limit
        cursor: $cursor
      ) {
        results {
          accountId
          collectionOwnerId
          collectionOwnerVersion
          collectionType
          outputs {
            name
            value
          }
          rawDataDescriptors {
            name
            persistedResultType
            rawDataKey
            recordCount
          }
          tag
          timestamp
        }
        pageInfo {
          hasNextPage
          endCursor
        }
      }
    }
`

const GetRawDataDownloadURL = `
    query GetRawDataDownloadUrl($rawDataKey: String!) {
      getRawDataDownloadUrl(rawDataKey: $rawDataKey)
    }
`

const CreateInstance = `
    mutation CreateInstance($instance: CreateIntegrationInstanceInput!) {
      createIntegrationInstance(instance: $instance) {
        id
        name
        accountId
        pollingInterval
        integrationDefinitionId
        description
        config
      }
    }
`

// integrationInstanceFields is the selection read back before an update.
const integrationInstanceFields = `
        id
        name
        accountId
        description
        integrationDefinitionId
        pollingInterval
        pollingIntervalCronExpression {
          hour
          dayOfWeek
        }
        config
        collectorPoolId
        ingestionSourcesOverrides {
          sourceId
          enabled
        }
`

const IntegrationInstances = `
    query IntegrationInstances($definitionId: String, $cursor: String, $limit: Int) {
      integrationInstancesV2(definitionId: $definitionId, cursor: $cursor, limit: $limit) {
        instances {` + integrationInstanceFields + `        }
        pageInfo {
          hasNextPage
          endCursor
        }
      }
    }
`

const IntegrationInstance = `
    query IntegrationInstance($integrationInstanceId: String!) {
      integrationInstance(id: $integrationInstanceId) {` + integrationInstanceFields + `      }
    }
`

const UpdateIntegrationInstance = `
    mutation UpdateIntegrationInstance($id: String!, $update: UpdateIntegrationInstanceInput!) {
      updateIntegrationInstance(id: $id, update: $update) {` + integrationInstanceFields + `      }
    }
`

const IntegrationJobs = `
    query IntegrationJobs($integrationInstanceId: String, $cursor: String, $size: Int) {
      integrationJobs(integrationInstanceId: $integrationInstanceId, cursor: $cursor, size: $size) {
        jobs {
          id
          status
          integrationInstanceId
          createDate
          endDate
          hasSkippedSteps
          integrationInstance {
            id
            name
          }
          integrationDefinition {
            id
            title
            integrationType
          }
        }
        pageInfo {
          hasNextPage
          endCursor
        }
      }
    }
`

const IntegrationJobEvents = `
    query ListEvents($jobId: String!, $integrationInstanceId: String!, $cursor: String, $size: Int) {
      integrationEvents(jobId: $jobId, integrationInstanceId: $integrationInstanceId, cursor: $cursor, size: $size) {
        events {
          id
          name
          description
          createDate
          jobId
          level
          eventCode
        }
        pageInfo {
          hasNextPage
          endCursor
        }
      }
    }
`

const FindIntegrationDefinition = `
    query IntegrationDefinitionByType($integrationType: String!, $includeConfig: Boolean = false) {
      findIntegrationDefinition(integrationType: $integrationType) {
        id
        name
        type
        title
        integrationType
        integrationClass
        description
        docsWebLink
        repoWebLink
        configFields @include(if: $includeConfig) {
          key
          displayName
          description
          type
          format
          defaultValue
          helperText
          optional
          computed
          readonly
          mask
        }
      }
    }
`

const GetEntityRawData = `
    query GetEntityRawData($entityId: String!, $source: String!) {
      entityRawDataLegacy(entityId: $entityId, source: $source) {
        entityId
        payload {
          ... on RawDataJSONEntityLegacy {
            contentType
            name
            data
          }
        }
      }
    }
`

const J1QLFromNaturalLanguage = `
    query j1qlFromNaturalLanguage($input: J1qlFromNaturalLanguageInput!) {
      j1qlFromNaturalLanguage(input: $input) {
        j1ql
      }
    }
`

const ComplianceFrameworkItem = `
    query complianceFrameworkItem($input: ComplianceFrameworkItemInput!) {
      complianceFrameworkItem(input: $input) {
        id
        name
        description
        displayCategory
        ref
        frameworkId
        auditStatus
        libraryItems {
          controls {
            id
            name
            description
            ref
          }
        }
      }
    }
`
